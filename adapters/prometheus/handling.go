package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/esclient-go/core/handling"
	"github.com/codewandler/esclient-go/core/metrics"
)

type handlerMetrics struct {
	eventDuration *prometheus.HistogramVec
	events        *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// NewHandlerMetrics creates a Prometheus implementation of handling.Metrics.
func NewHandlerMetrics(reg prometheus.Registerer) handling.Metrics {
	m := &handlerMetrics{
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esclient_handler_event_duration_seconds",
			Help:    "Event handling latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"handler"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_handler_events_total",
			Help: "Total number of events handled",
		}, []string{"handler", "success"}),

		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_handler_registrations_total",
			Help: "Total number of event handler registrations with the runtime",
		}, []string{"handler", "success"}),
	}

	reg.MustRegister(
		m.eventDuration,
		m.events,
		m.registrations,
	)

	return m
}

func (m *handlerMetrics) EventDuration(handler string) metrics.Timer {
	return newTimer(m.eventDuration.WithLabelValues(handler))
}

func (m *handlerMetrics) EventProcessed(handler string, success bool) {
	m.events.WithLabelValues(handler, metrics.BoolLabel(success)).Inc()
}

func (m *handlerMetrics) Registration(handler string, success bool) {
	m.registrations.WithLabelValues(handler, metrics.BoolLabel(success)).Inc()
}

var _ handling.Metrics = (*handlerMetrics)(nil)
