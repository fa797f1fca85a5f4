package runtimetest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
)

// Journal persists committed batches so that a runtime can be restored
// after a restart. Append is called with the runtime locked.
type Journal interface {
	Append(ctx context.Context, tenant uuid.UUID, batch []contracts.CommittedEvent) error
	// Replay calls fn for every appended batch, in append order.
	Replay(ctx context.Context, fn func(tenant uuid.UUID, batch []contracts.CommittedEvent) error) error
}

// Restore loads the journal into an empty runtime. Aggregate versions are
// rebuilt from the aggregate linkage of the replayed events.
func (r *Runtime) Restore(ctx context.Context) error {
	if r.journal == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tenants) > 0 {
		return fmt.Errorf("restore: runtime already holds events")
	}

	var batches, restored int
	err := r.journal.Replay(ctx, func(tenant uuid.UUID, batch []contracts.CommittedEvent) error {
		l := r.tenantLocked(tenant)
		for _, e := range batch {
			if e.EventLogSequenceNumber != uint64(len(l.events)) {
				return fmt.Errorf("restore: tenant %s: event %d out of order, expected %d",
					tenant, e.EventLogSequenceNumber, len(l.events))
			}
			l.events = append(l.events, e)
			if a := e.Aggregate; a != nil && a.WasAppliedByAggregate && a.AggregateRootID != nil {
				l.versions[aggregateKey{root: a.AggregateRootID.ID, source: e.EventSourceID}] = a.AggregateRootVersion
			}
		}
		batches++
		restored += len(batch)
		return nil
	})
	if err != nil {
		return err
	}

	close(r.changed)
	r.changed = make(chan struct{})
	r.log.Info("restored from journal", slog.Int("batches", batches), slog.Int("events", restored))
	return nil
}
