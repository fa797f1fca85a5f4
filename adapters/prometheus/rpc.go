package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/esclient-go/core/metrics"
	"github.com/codewandler/esclient-go/core/rpc"
)

type rpcMetrics struct {
	callDuration    *prometheus.HistogramVec
	calls           *prometheus.CounterVec
	streamsOpened   *prometheus.CounterVec
	streamsActive   *prometheus.GaugeVec
	transportErrors *prometheus.CounterVec
}

// NewRPCMetrics creates a Prometheus implementation of rpc.Metrics.
func NewRPCMetrics(reg prometheus.Registerer) rpc.Metrics {
	m := &rpcMetrics{
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esclient_rpc_call_duration_seconds",
			Help:    "Runtime call latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_rpc_calls_total",
			Help: "Total number of runtime calls",
		}, []string{"method", "success"}),

		streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_rpc_streams_opened_total",
			Help: "Total number of streams opened to the runtime",
		}, []string{"method"}),

		streamsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "esclient_rpc_streams_active",
			Help: "Number of open streams to the runtime",
		}, []string{"method"}),

		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esclient_rpc_transport_errors_total",
			Help: "Total number of transport errors by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.callDuration,
		m.calls,
		m.streamsOpened,
		m.streamsActive,
		m.transportErrors,
	)

	return m
}

func (m *rpcMetrics) CallDuration(method string) metrics.Timer {
	return newTimer(m.callDuration.WithLabelValues(method))
}

func (m *rpcMetrics) CallCompleted(method string, success bool) {
	m.calls.WithLabelValues(method, metrics.BoolLabel(success)).Inc()
}

func (m *rpcMetrics) StreamOpened(method string) {
	m.streamsOpened.WithLabelValues(method).Inc()
	m.streamsActive.WithLabelValues(method).Inc()
}

func (m *rpcMetrics) StreamClosed(method string) {
	m.streamsActive.WithLabelValues(method).Dec()
}

func (m *rpcMetrics) TransportError(kind string) {
	m.transportErrors.WithLabelValues(kind).Inc()
}

var _ rpc.Metrics = (*rpcMetrics)(nil)
