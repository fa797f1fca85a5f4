package runtimetest

import (
	"log/slog"
	"time"
)

type runtimeOptions struct {
	log        *slog.Logger
	now        func() time.Time
	retryDelay time.Duration
	subscribe  SubscribeFunc
	journal    Journal
}

type Option interface {
	applyToRuntime(*runtimeOptions)
}

type (
	valueOption[T any] struct{ v T }
	LogOption          valueOption[*slog.Logger]
	ClockOption        valueOption[func() time.Time]
	RetryDelayOption   valueOption[time.Duration]
	SubscribeOption    valueOption[SubscribeFunc]
	JournalOption      valueOption[Journal]
)

func WithLog(l *slog.Logger) LogOption                   { return LogOption{v: l} }
func WithClock(now func() time.Time) ClockOption         { return ClockOption{v: now} }
func WithRetryDelay(d time.Duration) RetryDelayOption    { return RetryDelayOption{v: d} }
func WithSubscribeFunc(fn SubscribeFunc) SubscribeOption { return SubscribeOption{v: fn} }
func WithJournal(j Journal) JournalOption                { return JournalOption{v: j} }

func (o LogOption) applyToRuntime(r *runtimeOptions)        { r.log = o.v }
func (o ClockOption) applyToRuntime(r *runtimeOptions)      { r.now = o.v }
func (o RetryDelayOption) applyToRuntime(r *runtimeOptions) { r.retryDelay = o.v }
func (o SubscribeOption) applyToRuntime(r *runtimeOptions)  { r.subscribe = o.v }
func (o JournalOption) applyToRuntime(r *runtimeOptions)    { r.journal = o.v }
