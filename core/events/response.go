package events

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
)

// Failure is a rejection reported by the runtime.
type Failure struct {
	ID     uuid.UUID
	Reason string
}

func (f Failure) Error() string { return fmt.Sprintf("runtime failure %s: %s", f.ID, f.Reason) }

func (f Failure) IsConcurrencyConflict() bool {
	return f.ID == contracts.FailureAggregateRootConcurrencyConflict
}

func (f Failure) SlogAttr() slog.Attr {
	return slog.Group("failure", slog.String("id", f.ID.String()), slog.String("reason", f.Reason))
}

func failureFromContract(c *contracts.Failure) *Failure {
	if c == nil {
		return nil
	}
	return &Failure{ID: c.ID, Reason: c.Reason}
}

// CommitEventsResponse is the outcome of a commit. When Failure is set no
// events were committed and Events is empty.
type CommitEventsResponse struct {
	Events  CommittedEvents
	Failure *Failure

	aggregate *CommittedAggregateEvents
}

func (r *CommitEventsResponse) Failed() bool { return r.Failure != nil }

// ForAggregate returns the committed events of an aggregate commit, or
// EmptyCommittedAggregateEvents for any other commit.
func (r *CommitEventsResponse) ForAggregate() CommittedAggregateEvents {
	if r.aggregate == nil {
		return EmptyCommittedAggregateEvents
	}
	return *r.aggregate
}

func failedResponse(f *Failure) *CommitEventsResponse {
	return &CommitEventsResponse{Events: EmptyCommittedEvents, Failure: f}
}
