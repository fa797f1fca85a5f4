package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/metrics"
)

type storeMetrics struct {
	commitDuration       *prometheus.HistogramVec
	eventsCommitted      *prometheus.CounterVec
	commitsFailed        *prometheus.CounterVec
	concurrencyConflicts *prometheus.CounterVec
}

// NewStoreMetrics creates a Prometheus implementation of events.Metrics.
func NewStoreMetrics(reg prometheus.Registerer) events.Metrics {
	m := &storeMetrics{
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esclient_store_commit_duration_seconds",
			Help:    "Event store commit latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		eventsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_store_events_committed_total",
			Help: "Total number of committed events",
		}, []string{"kind"}),

		commitsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_store_commits_failed_total",
			Help: "Total number of commits that produced no events",
		}, []string{"kind", "reason"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_store_concurrency_conflicts_total",
			Help: "Total number of aggregate root version conflicts",
		}, []string{"aggregate_root"}),
	}

	reg.MustRegister(
		m.commitDuration,
		m.eventsCommitted,
		m.commitsFailed,
		m.concurrencyConflicts,
	)

	return m
}

func (m *storeMetrics) CommitDuration(kind string) metrics.Timer {
	return newTimer(m.commitDuration.WithLabelValues(kind))
}

func (m *storeMetrics) EventsCommitted(kind string, count int) {
	m.eventsCommitted.WithLabelValues(kind).Add(float64(count))
}

func (m *storeMetrics) CommitFailed(kind string, reason string) {
	m.commitsFailed.WithLabelValues(kind, reason).Inc()
}

func (m *storeMetrics) ConcurrencyConflict(aggregateRoot string) {
	m.concurrencyConflicts.WithLabelValues(aggregateRoot).Inc()
}

var _ events.Metrics = (*storeMetrics)(nil)
