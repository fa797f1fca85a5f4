package handling

import (
	"log/slog"
	"time"

	"github.com/codewandler/esclient-go/core/rpc"
)

type handlersOptions struct {
	log            *slog.Logger
	metrics        Metrics
	retry          rpc.RetryPolicy
	reconnectDelay time.Duration
	idleTimeout    time.Duration
}

type Option interface {
	applyToHandlers(*handlersOptions)
}

type (
	valueOption[T any]   struct{ v T }
	LogOption            valueOption[*slog.Logger]
	MetricsOption        valueOption[Metrics]
	RetryOption          valueOption[rpc.RetryPolicy]
	ReconnectDelayOption valueOption[time.Duration]
	IdleTimeoutOption    valueOption[time.Duration]
)

func WithLog(l *slog.Logger) LogOption    { return LogOption{v: l} }
func WithMetrics(m Metrics) MetricsOption { return MetricsOption{v: m} }

// WithRetryPolicy sets how registration is retried by Start and
// RegisterForever.
func WithRetryPolicy(p rpc.RetryPolicy) RetryOption { return RetryOption{v: p} }

// WithReconnectDelay sets the pause before RegisterForever starts over once
// the retry policy gave up.
func WithReconnectDelay(d time.Duration) ReconnectDelayOption { return ReconnectDelayOption{v: d} }

// WithPartitionIdleTimeout releases the worker of a partition that has
// seen no events for d.
func WithPartitionIdleTimeout(d time.Duration) IdleTimeoutOption { return IdleTimeoutOption{v: d} }

func (o LogOption) applyToHandlers(h *handlersOptions)            { h.log = o.v }
func (o MetricsOption) applyToHandlers(h *handlersOptions)        { h.metrics = o.v }
func (o RetryOption) applyToHandlers(h *handlersOptions)          { h.retry = o.v }
func (o ReconnectDelayOption) applyToHandlers(h *handlersOptions) { h.reconnectDelay = o.v }
func (o IdleTimeoutOption) applyToHandlers(h *handlersOptions)    { h.idleTimeout = o.v }
