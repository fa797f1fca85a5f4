package eventhorizon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/rpc"
)

// EventHorizons sends subscription requests to the runtime and publishes
// the responses.
type EventHorizons struct {
	ch        rpc.Channel
	provider  execution.Provider
	responses *Responses
	retry     rpc.RetryPolicy
	log       *slog.Logger
}

func NewEventHorizons(ch rpc.Channel, provider execution.Provider, opts ...Option) *EventHorizons {
	options := horizonOptions{
		log:   slog.Default(),
		retry: rpc.NoRetry(),
	}
	for _, opt := range opts {
		opt.applyToHorizons(&options)
	}
	if provider == nil {
		provider = execution.Static(execution.New(uuid.Nil, execution.Version{}, ""))
	}
	return &EventHorizons{
		ch:        ch,
		provider:  provider,
		responses: NewResponses(),
		retry:     options.retry,
		log:       options.log.With(slog.String("component", "event_horizons")),
	}
}

// Responses returns the stream every subscription response is published to.
func (h *EventHorizons) Responses() *Responses { return h.responses }

// ForTenant starts the subscriptions of consumer. Its callbacks are bound
// to the responses of h.
func (h *EventHorizons) ForTenant(consumer uuid.UUID) *TenantWithSubscriptionsBuilder {
	return NewTenantWithSubscriptionsBuilder(consumer, h.responses)
}

// Subscribe requests every subscription of tenants, one after the other,
// and returns the responses in request order. A transport error is retried
// with the configured policy; once it gives up, the error is collected and
// the next subscription is requested. Cancellation stops at once.
func (h *EventHorizons) Subscribe(ctx context.Context, tenants ...TenantWithSubscriptions) ([]Response, error) {
	var (
		out  []Response
		errs []error
	)
	for _, t := range tenants {
		for _, s := range t.Subscriptions {
			res, err := h.subscribe(ctx, t.ConsumerTenant, s)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				errs = append(errs, err)
				continue
			}
			out = append(out, res)
			h.responses.Publish(res)
		}
	}
	return out, errors.Join(errs...)
}

func (h *EventHorizons) subscribe(ctx context.Context, consumer uuid.UUID, s Subscription) (Response, error) {
	log := h.log.With(slog.String("consumer_tenant", consumer.String()), s.SlogAttr())

	req := s.toContract()
	req.CallContext = execution.CallContext(h.provider.Current().ForTenant(consumer))

	var res *contracts.SubscriptionResponse
	err := h.retry.Do(ctx, func(ctx context.Context) (err error) {
		res, err = rpc.Unary[contracts.SubscriptionRequest, contracts.SubscriptionResponse](ctx, h.ch, contracts.MethodSubscribe, req)
		return err
	})
	if err != nil {
		log.Warn("subscription request failed", slog.Any("error", err))
		return Response{}, fmt.Errorf("subscribe %s: %w", s.ProducerStream, err)
	}

	out := Response{ConsumerTenant: consumer, Subscription: s, ConsentID: res.ConsentID}
	if f := res.Failure; f != nil {
		out.Failure = &events.Failure{ID: f.ID, Reason: f.Reason}
		log.Warn("subscription rejected", out.Failure.SlogAttr())
		return out, nil
	}
	log.Info("subscribed", slog.String("consent", res.ConsentID.String()))
	return out, nil
}
