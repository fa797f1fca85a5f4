package eventhorizon

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TenantWithSubscriptionsBuilder collects the subscriptions of one
// consumer tenant. Its callbacks fire for every subscription of the tenant.
type TenantWithSubscriptionsBuilder struct {
	consumer  uuid.UUID
	responses *Responses
	builders  []*SubscriptionBuilder
}

// NewTenantWithSubscriptionsBuilder filters source down to responses for
// consumer. A nil source gets a fresh one.
func NewTenantWithSubscriptionsBuilder(consumer uuid.UUID, source *Responses) *TenantWithSubscriptionsBuilder {
	if source == nil {
		source = NewResponses()
	}
	return &TenantWithSubscriptionsBuilder{
		consumer: consumer,
		responses: source.Filter(func(r Response) bool {
			return r.ConsumerTenant.String() == consumer.String()
		}),
	}
}

// ForMicroservice declares one subscription to microservice.
func (b *TenantWithSubscriptionsBuilder) ForMicroservice(microservice uuid.UUID, configure func(*SubscriptionBuilder)) *TenantWithSubscriptionsBuilder {
	sb := NewSubscriptionBuilder(microservice, b.responses)
	if configure != nil {
		configure(sb)
	}
	b.builders = append(b.builders, sb)
	return b
}

func (b *TenantWithSubscriptionsBuilder) OnSuccess(fn Callback) *TenantWithSubscriptionsBuilder {
	b.responses.OnSuccess(fn)
	return b
}

func (b *TenantWithSubscriptionsBuilder) OnFailure(fn Callback) *TenantWithSubscriptionsBuilder {
	b.responses.OnFailure(fn)
	return b
}

func (b *TenantWithSubscriptionsBuilder) OnCompleted(fn Callback) *TenantWithSubscriptionsBuilder {
	b.responses.OnCompleted(fn)
	return b
}

// Build returns the declared subscriptions in declaration order. All
// builder errors are reported together.
func (b *TenantWithSubscriptionsBuilder) Build() (TenantWithSubscriptions, error) {
	var errs []error
	subs := make([]Subscription, 0, len(b.builders))
	for _, sb := range b.builders {
		s, err := sb.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("microservice %s: %w", sb.microservice, err))
			continue
		}
		subs = append(subs, s)
	}
	if err := errors.Join(errs...); err != nil {
		return TenantWithSubscriptions{}, err
	}
	return TenantWithSubscriptions{
		ConsumerTenant: b.consumer,
		Subscriptions:  subs,
		responses:      b.responses,
	}, nil
}
