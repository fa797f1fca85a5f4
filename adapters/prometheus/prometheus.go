// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the event store, the event handlers and the rpc channel.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/esclient-go/core/client"
	"github.com/codewandler/esclient-go/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// NewClientMetrics registers the metrics of every client component on reg.
func NewClientMetrics(reg prometheus.Registerer) client.MetricsConfig {
	return client.MetricsConfig{
		Store:    NewStoreMetrics(reg),
		Handlers: NewHandlerMetrics(reg),
		RPC:      NewRPCMetrics(reg),
	}
}
