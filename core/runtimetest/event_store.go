package runtimetest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
)

func validEventType(a *contracts.Artifact) bool { return a != nil && a.ID != uuid.Nil }

func (r *Runtime) commit(ctx context.Context, req *contracts.CommitEventsRequest) (*contracts.CommitEventsResponse, error) {
	ec, f := tenantOf(req.CallContext)
	if f != nil {
		return &contracts.CommitEventsResponse{Failure: f}, nil
	}
	for i, e := range req.Events {
		if !validEventType(e.EventType) {
			return &contracts.CommitEventsResponse{Failure: failure(contracts.FailureInvalidRequest, fmt.Sprintf("event %d has no event type", i))}, nil
		}
		if e.EventSourceID == "" {
			return &contracts.CommitEventsResponse{Failure: failure(contracts.FailureInvalidRequest, fmt.Sprintf("event %d has no event source", i))}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.tenantLocked(ec.TenantID)
	occurred := r.now().UTC()
	out := make([]contracts.CommittedEvent, 0, len(req.Events))
	for _, e := range req.Events {
		out = append(out, contracts.CommittedEvent{
			Occurred:         occurred,
			EventSourceID:    e.EventSourceID,
			ExecutionContext: ec,
			EventType:        e.EventType,
			Content:          e.Content,
			Public:           e.Public,
		})
	}
	out, err := r.storeLocked(ctx, ec.TenantID, l, out)
	if err != nil {
		return nil, err
	}
	r.log.Debug("committed", slog.String("tenant", ec.TenantID.String()), slog.Int("events", len(out)))
	return &contracts.CommitEventsResponse{Events: out}, nil
}

func (r *Runtime) commitForAggregate(ctx context.Context, req *contracts.CommitAggregateEventsRequest) (*contracts.CommitAggregateEventsResponse, error) {
	ec, f := tenantOf(req.CallContext)
	if f != nil {
		return &contracts.CommitAggregateEventsResponse{Failure: f}, nil
	}
	batch := req.Events
	if !validEventType(batch.AggregateRootID) || batch.EventSourceID == "" {
		return &contracts.CommitAggregateEventsResponse{Failure: failure(contracts.FailureInvalidRequest, "aggregate root and event source are required")}, nil
	}
	for i, e := range batch.Events {
		if !validEventType(e.EventType) {
			return &contracts.CommitAggregateEventsResponse{Failure: failure(contracts.FailureInvalidRequest, fmt.Sprintf("event %d has no event type", i))}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.tenantLocked(ec.TenantID)
	key := aggregateKey{root: batch.AggregateRootID.ID, source: batch.EventSourceID}
	current := l.versions[key]
	if current != batch.ExpectedAggregateRootVersion {
		r.log.Debug("aggregate version conflict",
			slog.Uint64("expected", batch.ExpectedAggregateRootVersion),
			slog.Uint64("current", current),
		)
		return &contracts.CommitAggregateEventsResponse{Failure: failure(
			contracts.FailureAggregateRootConcurrencyConflict,
			fmt.Sprintf("aggregate root %s for event source %q is at version %d, expected %d",
				batch.AggregateRootID.ID, batch.EventSourceID, current, batch.ExpectedAggregateRootVersion),
		)}, nil
	}

	occurred := r.now().UTC()
	out := &contracts.CommittedAggregateEvents{
		AggregateRootID: batch.AggregateRootID,
		EventSourceID:   batch.EventSourceID,
		Events:          make([]contracts.CommittedEvent, 0, len(batch.Events)),
	}
	for i, e := range batch.Events {
		out.Events = append(out.Events, contracts.CommittedEvent{
			Occurred:         occurred,
			EventSourceID:    batch.EventSourceID,
			ExecutionContext: ec,
			EventType:        e.EventType,
			Content:          e.Content,
			Public:           e.Public,
			Aggregate: &contracts.AggregateLinkage{
				WasAppliedByAggregate: true,
				AggregateRootID:       batch.AggregateRootID,
				AggregateRootVersion:  batch.ExpectedAggregateRootVersion + uint64(i) + 1,
			},
		})
	}
	stored, err := r.storeLocked(ctx, ec.TenantID, l, out.Events)
	if err != nil {
		return nil, err
	}
	out.Events = stored
	l.versions[key] = batch.ExpectedAggregateRootVersion + uint64(len(batch.Events))
	return &contracts.CommitAggregateEventsResponse{Events: out}, nil
}

func (r *Runtime) fetchForAggregate(_ context.Context, req *contracts.FetchForAggregateRequest) (*contracts.FetchForAggregateResponse, error) {
	ec, f := tenantOf(req.CallContext)
	if f != nil {
		return &contracts.FetchForAggregateResponse{Failure: f}, nil
	}
	if !validEventType(req.AggregateRootID) || req.EventSourceID == "" {
		return &contracts.FetchForAggregateResponse{Failure: failure(contracts.FailureInvalidRequest, "aggregate root and event source are required")}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := &contracts.CommittedAggregateEvents{
		AggregateRootID: req.AggregateRootID,
		EventSourceID:   req.EventSourceID,
	}
	for _, e := range r.tenantLocked(ec.TenantID).events {
		a := e.Aggregate
		if a == nil || a.AggregateRootID == nil || a.AggregateRootID.ID != req.AggregateRootID.ID || e.EventSourceID != req.EventSourceID {
			continue
		}
		out.Events = append(out.Events, e)
	}
	return &contracts.FetchForAggregateResponse{Events: out}, nil
}

func (r *Runtime) handleSubscribe(_ context.Context, req *contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
	if _, f := tenantOf(req.CallContext); f != nil {
		return &contracts.SubscriptionResponse{Failure: f}, nil
	}
	r.mu.Lock()
	r.subscriptions = append(r.subscriptions, *req)
	r.mu.Unlock()
	return r.subscribe(req), nil
}
