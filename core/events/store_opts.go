package events

import (
	"log/slog"

	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/internal/codec"
)

type storeOptions struct {
	log     *slog.Logger
	metrics Metrics
	retry   rpc.RetryPolicy
	codec   codec.Codec
}

type StoreOption interface {
	applyToStore(*storeOptions)
}

type (
	valueOption[T any] struct{ v T }
	LogOption          valueOption[*slog.Logger]
	MetricsOption      valueOption[Metrics]
	RetryOption        valueOption[rpc.RetryPolicy]
	CodecOption        valueOption[codec.Codec]
)

func WithLog(l *slog.Logger) LogOption              { return LogOption{v: l} }
func WithMetrics(m Metrics) MetricsOption           { return MetricsOption{v: m} }
func WithRetryPolicy(p rpc.RetryPolicy) RetryOption { return RetryOption{v: p} }
func WithCodec(c codec.Codec) CodecOption           { return CodecOption{v: c} }

func (o LogOption) applyToStore(s *storeOptions)     { s.log = o.v }
func (o MetricsOption) applyToStore(s *storeOptions) { s.metrics = o.v }
func (o RetryOption) applyToStore(s *storeOptions)   { s.retry = o.v }
func (o CodecOption) applyToStore(s *storeOptions)   { s.codec = o.v }

type commitOptions struct {
	eventType     EventType
	aggregateRoot AggregateRootType
}

// CommitOption refines a single event commit.
type CommitOption interface {
	applyToCommit(*commitOptions)
}

type (
	EventTypeOption     valueOption[EventType]
	AggregateRootOption valueOption[AggregateRootType]
)

// WithEventType commits the content as et instead of resolving its type.
func WithEventType(et EventType) EventTypeOption { return EventTypeOption{v: et} }

// WithAggregateRoot names the aggregate root instead of resolving it from a
// Go type.
func WithAggregateRoot(t AggregateRootType) AggregateRootOption { return AggregateRootOption{v: t} }

func (o EventTypeOption) applyToCommit(c *commitOptions)     { c.eventType = o.v }
func (o AggregateRootOption) applyToCommit(c *commitOptions) { c.aggregateRoot = o.v }
