package events

import "github.com/codewandler/esclient-go/core/metrics"

// Commit kinds used as metric labels.
const (
	KindEvents    = "events"
	KindAggregate = "aggregate"
	KindFetch     = "fetch"
)

// Metrics observes the event store. Implementations must be safe for
// concurrent use.
type Metrics interface {
	CommitDuration(kind string) metrics.Timer
	EventsCommitted(kind string, count int)
	// CommitFailed counts commits that did not produce events; reason is
	// "rejected" for runtime failures and "error" for everything else.
	CommitFailed(kind string, reason string)
	ConcurrencyConflict(aggregateRoot string)
}

type nopMetrics struct{}

func (nopMetrics) CommitDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) EventsCommitted(string, int)         {}
func (nopMetrics) CommitFailed(string, string)         {}
func (nopMetrics) ConcurrencyConflict(string)          {}

func NopMetrics() Metrics { return nopMetrics{} }
