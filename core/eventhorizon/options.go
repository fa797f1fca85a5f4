package eventhorizon

import (
	"log/slog"

	"github.com/codewandler/esclient-go/core/rpc"
)

type horizonOptions struct {
	log   *slog.Logger
	retry rpc.RetryPolicy
}

type Option interface {
	applyToHorizons(*horizonOptions)
}

type (
	valueOption[T any] struct{ v T }
	LogOption          valueOption[*slog.Logger]
	RetryOption        valueOption[rpc.RetryPolicy]
)

func WithLog(l *slog.Logger) LogOption { return LogOption{v: l} }

// WithRetryPolicy retries subscription requests that failed in transport.
// A failure reported by the runtime is never retried.
func WithRetryPolicy(p rpc.RetryPolicy) RetryOption { return RetryOption{v: p} }

func (o LogOption) applyToHorizons(h *horizonOptions)   { h.log = o.v }
func (o RetryOption) applyToHorizons(h *horizonOptions) { h.retry = o.v }
