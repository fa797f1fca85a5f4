package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy decides how often an operation against the runtime is attempted.
type RetryPolicy interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

type noRetry struct{}

func (noRetry) Do(ctx context.Context, op func(ctx context.Context) error) error { return op(ctx) }

// NoRetry attempts the operation exactly once.
func NoRetry() RetryPolicy { return noRetry{} }

// Permanent marks err so that retry policies stop immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// BackoffPolicy retries with exponential backoff. Zero fields fall back to
// the backoff package defaults; a zero MaxElapsedTime and MaxTries retry
// until ctx is done. Cancellation, unknown methods and malformed messages
// are never retried.
type BackoffPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxTries        uint
	OnRetry         func(err error, next time.Duration)
}

func (p BackoffPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
	}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	return err
}

func retryable(err error) bool {
	switch {
	case IsCanceled(err),
		errors.Is(err, ErrUnknownMethod),
		errors.Is(err, ErrMalformedMessage),
		errors.Is(err, ErrChannelClosed):
		return false
	}
	var perm *backoff.PermanentError
	return !errors.As(err, &perm)
}
