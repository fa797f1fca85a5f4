// Package contracts declares the messages exchanged with the runtime.
//
// Messages are plain structs encoded as JSON by the rpc helpers. They carry
// no behavior; conversion to and from the SDK model lives in the owning
// packages (artifacts, execution, events, handling, eventhorizon).
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Method names served by the runtime.
const (
	MethodCommit             = "/esclient.events.EventStore/Commit"
	MethodCommitForAggregate = "/esclient.events.EventStore/CommitForAggregate"
	MethodFetchForAggregate  = "/esclient.events.EventStore/FetchForAggregate"
	MethodEventHandlers      = "/esclient.processing.EventHandlers/Connect"
	MethodSubscribe          = "/esclient.eventhorizon.Subscriptions/Subscribe"
)

// Well-known failure ids reported by the runtime.
var (
	FailureAggregateRootConcurrencyConflict = uuid.MustParse("f25cccfb-3ff2-4a36-8c3f-8bbd5a8e8d0b")
	FailureMissingCallContext               = uuid.MustParse("3e7e0d3e-2b5f-4b2c-9c51-7d8c1b2a9f11")
	FailureEventHandlerAlreadyRegistered    = uuid.MustParse("0b3a6a1e-7c8e-4f6d-a0c5-2c1d7e9b4a21")
	FailureSubscriptionRejected             = uuid.MustParse("a1f7c2d4-5e8b-4c3a-9d6f-1b2e3c4d5e6f")
	FailureInvalidRequest                   = uuid.MustParse("6d2b9c4e-1f3a-4e5d-8b7c-9a0e1f2d3c4b")
)

type (
	Artifact struct {
		ID         uuid.UUID `json:"id"`
		Generation uint32    `json:"generation"`
	}

	Version struct {
		Major      int    `json:"major"`
		Minor      int    `json:"minor"`
		Patch      int    `json:"patch"`
		Build      int    `json:"build"`
		PreRelease string `json:"pre_release,omitempty"`
	}

	Claim struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		ValueType string `json:"value_type"`
	}

	ExecutionContext struct {
		MicroserviceID uuid.UUID `json:"microservice_id"`
		TenantID       uuid.UUID `json:"tenant_id"`
		Version        *Version  `json:"version,omitempty"`
		CorrelationID  uuid.UUID `json:"correlation_id"`
		Environment    string    `json:"environment"`
		Claims         []Claim   `json:"claims,omitempty"`
	}

	CallRequestContext struct {
		ExecutionContext *ExecutionContext `json:"execution_context"`
	}

	Failure struct {
		ID     uuid.UUID `json:"id"`
		Reason string    `json:"reason"`
	}
)

// === event store ===

type (
	UncommittedEvent struct {
		EventSourceID string    `json:"event_source_id"`
		EventType     *Artifact `json:"event_type"`
		Content       []byte    `json:"content"`
		Public        bool      `json:"public"`
	}

	UncommittedAggregateEvent struct {
		EventType *Artifact `json:"event_type"`
		Content   []byte    `json:"content"`
		Public    bool      `json:"public"`
	}

	UncommittedAggregateEvents struct {
		AggregateRootID              *Artifact                   `json:"aggregate_root_id"`
		EventSourceID                string                      `json:"event_source_id"`
		ExpectedAggregateRootVersion uint64                      `json:"expected_aggregate_root_version"`
		Events                       []UncommittedAggregateEvent `json:"events"`
	}

	AggregateLinkage struct {
		WasAppliedByAggregate bool      `json:"was_applied_by_aggregate"`
		AggregateRootID       *Artifact `json:"aggregate_root_id"`
		AggregateRootVersion  uint64    `json:"aggregate_root_version"`
	}

	CommittedEvent struct {
		EventLogSequenceNumber         uint64            `json:"event_log_sequence_number"`
		Occurred                       time.Time         `json:"occurred"`
		EventSourceID                  string            `json:"event_source_id"`
		ExecutionContext               *ExecutionContext `json:"execution_context"`
		EventType                      *Artifact         `json:"event_type"`
		Content                        []byte            `json:"content"`
		Public                         bool              `json:"public"`
		External                       bool              `json:"external,omitempty"`
		ExternalEventLogSequenceNumber uint64            `json:"external_event_log_sequence_number,omitempty"`
		ExternalEventReceived          time.Time         `json:"external_event_received"`
		Aggregate                      *AggregateLinkage `json:"aggregate,omitempty"`
	}

	CommitEventsRequest struct {
		CallContext *CallRequestContext `json:"call_context"`
		Events      []UncommittedEvent  `json:"events"`
	}

	CommitEventsResponse struct {
		Events  []CommittedEvent `json:"events"`
		Failure *Failure         `json:"failure,omitempty"`
	}

	CommitAggregateEventsRequest struct {
		CallContext *CallRequestContext        `json:"call_context"`
		Events      UncommittedAggregateEvents `json:"events"`
	}

	CommittedAggregateEvents struct {
		AggregateRootID *Artifact        `json:"aggregate_root_id"`
		EventSourceID   string           `json:"event_source_id"`
		Events          []CommittedEvent `json:"events"`
	}

	CommitAggregateEventsResponse struct {
		Events  *CommittedAggregateEvents `json:"events,omitempty"`
		Failure *Failure                  `json:"failure,omitempty"`
	}

	FetchForAggregateRequest struct {
		CallContext     *CallRequestContext `json:"call_context"`
		AggregateRootID *Artifact           `json:"aggregate_root_id"`
		EventSourceID   string              `json:"event_source_id"`
	}

	FetchForAggregateResponse struct {
		Events  *CommittedAggregateEvents `json:"events,omitempty"`
		Failure *Failure                  `json:"failure,omitempty"`
	}
)

// === event handlers (reverse call over a stream) ===

type (
	// EventHandlerRegistrationRequest is the first frame a client sends.
	EventHandlerRegistrationRequest struct {
		CallContext *CallRequestContext `json:"call_context"`
		HandlerID   uuid.UUID           `json:"handler_id"`
		ScopeID     uuid.UUID           `json:"scope_id"`
		Partitioned bool                `json:"partitioned"`
		Types       []Artifact          `json:"types"`
	}

	// EventHandlerRegistrationResponse is the first frame the runtime sends.
	EventHandlerRegistrationResponse struct {
		Failure *Failure `json:"failure,omitempty"`
	}

	HandleEventRequest struct {
		RequestID   string          `json:"request_id"`
		Event       *CommittedEvent `json:"event"`
		PartitionID string          `json:"partition_id"`
		RetryCount  uint32          `json:"retry_count"`
	}

	ProcessorFailure struct {
		Reason string `json:"reason"`
		Retry  bool   `json:"retry"`
	}

	HandleEventResponse struct {
		RequestID string            `json:"request_id"`
		Failure   *ProcessorFailure `json:"failure,omitempty"`
	}
)

// === event horizon ===

type (
	SubscriptionRequest struct {
		CallContext          *CallRequestContext `json:"call_context"`
		ProducerMicroservice uuid.UUID           `json:"producer_microservice"`
		ProducerTenant       uuid.UUID           `json:"producer_tenant"`
		StreamID             uuid.UUID           `json:"stream_id"`
		PartitionID          string              `json:"partition_id"`
		ScopeID              uuid.UUID           `json:"scope_id"`
	}

	SubscriptionResponse struct {
		ConsentID uuid.UUID `json:"consent_id"`
		Failure   *Failure  `json:"failure,omitempty"`
	}
)
