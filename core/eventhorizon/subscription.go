package eventhorizon

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/events"
)

// Subscription describes which producer stream a consumer scope receives.
// It is a comparable value.
type Subscription struct {
	ProducerMicroservice uuid.UUID
	ProducerTenant       uuid.UUID
	ProducerStream       events.StreamID
	ProducerPartition    events.PartitionID
	ConsumerScope        events.ScopeID
}

func (s Subscription) SlogAttr() slog.Attr {
	return slog.Group("subscription",
		slog.String("producer_microservice", s.ProducerMicroservice.String()),
		slog.String("producer_tenant", s.ProducerTenant.String()),
		slog.String("stream", s.ProducerStream.String()),
		slog.String("partition", s.ProducerPartition.String()),
		slog.String("scope", s.ConsumerScope.String()),
	)
}

func (s Subscription) toContract() *contracts.SubscriptionRequest {
	return &contracts.SubscriptionRequest{
		ProducerMicroservice: s.ProducerMicroservice,
		ProducerTenant:       s.ProducerTenant,
		StreamID:             s.ProducerStream.UUID(),
		PartitionID:          s.ProducerPartition.String(),
		ScopeID:              s.ConsumerScope.UUID(),
	}
}

// TenantWithSubscriptions holds the subscriptions of one consumer tenant.
type TenantWithSubscriptions struct {
	ConsumerTenant uuid.UUID
	Subscriptions  []Subscription

	responses *Responses
}

// Responses returns the responses for this consumer tenant only.
func (t TenantWithSubscriptions) Responses() *Responses { return t.responses }

// Response is the outcome of one subscription request.
type Response struct {
	ConsumerTenant uuid.UUID
	Subscription   Subscription
	ConsentID      uuid.UUID
	Failure        *events.Failure
}

func (r Response) Succeeded() bool { return r.Failure == nil }

func (r Response) SlogAttr() slog.Attr {
	attrs := []any{
		slog.String("consumer_tenant", r.ConsumerTenant.String()),
		r.Subscription.SlogAttr(),
	}
	if r.Failure != nil {
		attrs = append(attrs, r.Failure.SlogAttr())
	} else {
		attrs = append(attrs, slog.String("consent", r.ConsentID.String()))
	}
	return slog.Group("response", attrs...)
}
