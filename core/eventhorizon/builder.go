package eventhorizon

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/events"
)

func alreadyCalled(method string) error {
	return fmt.Errorf("%w: %s", ErrSubscriptionBuilderMethodAlreadyCalled, method)
}

func incomplete(what, hint string) error {
	return fmt.Errorf("%w: %s: %s", ErrSubscriptionDefinitionIncomplete, what, hint)
}

// misuse collects the errors of one builder chain. Every level reports all
// of them from Build, whichever level was misused.
type misuse struct{ errs []error }

func (m *misuse) add(err error) { m.errs = append(m.errs, err) }
func (m *misuse) err() error    { return errors.Join(m.errs...) }

// SubscriptionBuilder declares a subscription to one producer microservice.
type SubscriptionBuilder struct {
	microservice uuid.UUID
	responses    *Responses
	errs         *misuse
	next         *ProducerTenantBuilder
}

// NewSubscriptionBuilder starts a subscription to microservice. Its
// callbacks see the responses of source for that microservice; a nil
// source gets a fresh one.
func NewSubscriptionBuilder(microservice uuid.UUID, source *Responses) *SubscriptionBuilder {
	if source == nil {
		source = NewResponses()
	}
	return &SubscriptionBuilder{
		microservice: microservice,
		errs:         &misuse{},
		responses: source.Filter(func(r Response) bool {
			return r.Subscription.ProducerMicroservice == microservice
		}),
	}
}

func (b *SubscriptionBuilder) FromProducerTenant(tenant uuid.UUID) *ProducerTenantBuilder {
	if b.next != nil {
		b.errs.add(alreadyCalled("FromProducerTenant()"))
		return b.next
	}
	b.next = &ProducerTenantBuilder{
		microservice: b.microservice,
		errs:         b.errs,
		tenant:       tenant,
		responses: b.responses.Filter(func(r Response) bool {
			return r.Subscription.ProducerTenant == tenant
		}),
	}
	return b.next
}

func (b *SubscriptionBuilder) Build() (Subscription, error) {
	if err := b.errs.err(); err != nil {
		return Subscription{}, err
	}
	if b.next == nil {
		return Subscription{}, incomplete("producer tenant", "call FromProducerTenant()")
	}
	return b.next.Build()
}

type ProducerTenantBuilder struct {
	microservice uuid.UUID
	tenant       uuid.UUID
	responses    *Responses
	errs         *misuse
	next         *ProducerStreamBuilder
}

func (b *ProducerTenantBuilder) FromProducerStream(stream events.StreamID) *ProducerStreamBuilder {
	if b.next != nil {
		b.errs.add(alreadyCalled("FromProducerStream()"))
		return b.next
	}
	b.next = &ProducerStreamBuilder{
		microservice: b.microservice,
		errs:         b.errs,
		tenant:       b.tenant,
		stream:       stream,
		responses: b.responses.Filter(func(r Response) bool {
			return r.Subscription.ProducerStream == stream
		}),
	}
	return b.next
}

func (b *ProducerTenantBuilder) Build() (Subscription, error) {
	if err := b.errs.err(); err != nil {
		return Subscription{}, err
	}
	if b.next == nil {
		return Subscription{}, incomplete("producer stream", "call FromProducerStream()")
	}
	return b.next.Build()
}

type ProducerStreamBuilder struct {
	microservice uuid.UUID
	tenant       uuid.UUID
	stream       events.StreamID
	responses    *Responses
	errs         *misuse
	next         *ProducerPartitionBuilder
}

func (b *ProducerStreamBuilder) FromProducerPartition(partition events.PartitionID) *ProducerPartitionBuilder {
	if b.next != nil {
		b.errs.add(alreadyCalled("FromProducerPartition()"))
		return b.next
	}
	b.next = &ProducerPartitionBuilder{
		microservice: b.microservice,
		errs:         b.errs,
		tenant:       b.tenant,
		stream:       b.stream,
		partition:    partition,
		responses: b.responses.Filter(func(r Response) bool {
			return r.Subscription.ProducerPartition.String() == partition.String()
		}),
	}
	return b.next
}

func (b *ProducerStreamBuilder) Build() (Subscription, error) {
	if err := b.errs.err(); err != nil {
		return Subscription{}, err
	}
	if b.next == nil {
		return Subscription{}, incomplete("producer partition", "call FromProducerPartition()")
	}
	return b.next.Build()
}

// ProducerPartitionBuilder is the last producer level. Its callbacks see
// every response for the partition, whatever the consumer scope.
type ProducerPartitionBuilder struct {
	microservice uuid.UUID
	tenant       uuid.UUID
	stream       events.StreamID
	partition    events.PartitionID
	responses    *Responses
	errs         *misuse
	next         *ConsumerScopeBuilder
}

func (b *ProducerPartitionBuilder) ToScope(scope events.ScopeID) *ConsumerScopeBuilder {
	if b.next != nil {
		b.errs.add(alreadyCalled("ToScope()"))
		return b.next
	}
	b.next = &ConsumerScopeBuilder{
		errs: b.errs,
		subscription: Subscription{
			ProducerMicroservice: b.microservice,
			ProducerTenant:       b.tenant,
			ProducerStream:       b.stream,
			ProducerPartition:    b.partition,
			ConsumerScope:        scope,
		},
		responses: b.responses.Filter(func(r Response) bool {
			return r.Subscription.ConsumerScope == scope
		}),
	}
	return b.next
}

func (b *ProducerPartitionBuilder) OnSuccess(fn Callback) *ProducerPartitionBuilder {
	b.responses.OnSuccess(fn)
	return b
}

func (b *ProducerPartitionBuilder) OnFailure(fn Callback) *ProducerPartitionBuilder {
	b.responses.OnFailure(fn)
	return b
}

func (b *ProducerPartitionBuilder) OnCompleted(fn Callback) *ProducerPartitionBuilder {
	b.responses.OnCompleted(fn)
	return b
}

func (b *ProducerPartitionBuilder) Build() (Subscription, error) {
	if err := b.errs.err(); err != nil {
		return Subscription{}, err
	}
	if b.next == nil {
		return Subscription{}, incomplete("scope", "call ToScope()")
	}
	return b.next.Build()
}

// ConsumerScopeBuilder holds a complete subscription.
type ConsumerScopeBuilder struct {
	subscription Subscription
	responses    *Responses
	errs         *misuse
}

func (b *ConsumerScopeBuilder) OnSuccess(fn Callback) *ConsumerScopeBuilder {
	b.responses.OnSuccess(fn)
	return b
}

func (b *ConsumerScopeBuilder) OnFailure(fn Callback) *ConsumerScopeBuilder {
	b.responses.OnFailure(fn)
	return b
}

func (b *ConsumerScopeBuilder) OnCompleted(fn Callback) *ConsumerScopeBuilder {
	b.responses.OnCompleted(fn)
	return b
}

func (b *ConsumerScopeBuilder) Build() (Subscription, error) {
	if err := b.errs.err(); err != nil {
		return Subscription{}, err
	}
	return b.subscription, nil
}
