package eventhorizon_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/eventhorizon"
	"github.com/codewandler/esclient-go/core/events"
)

type calls []string

func (l *calls) record(name string) eventhorizon.Callback {
	return func(r eventhorizon.Response) {
		*l = append(*l, name+":"+r.Subscription.ProducerPartition.String())
	}
}

func response(consumer uuid.UUID, partition events.PartitionID, failed bool) eventhorizon.Response {
	r := eventhorizon.Response{
		ConsumerTenant: consumer,
		Subscription: eventhorizon.Subscription{
			ProducerMicroservice: producer,
			ProducerTenant:       producerTenant,
			ProducerStream:       stream,
			ProducerPartition:    partition,
			ConsumerScope:        scope,
		},
		ConsentID: uuid.New(),
	}
	if failed {
		r.Failure = &events.Failure{ID: uuid.New(), Reason: "no consent"}
	}
	return r
}

func TestResponses_Filter(t *testing.T) {
	var got calls
	root := eventhorizon.NewResponses()
	root.OnCompleted(got.record("all"))

	evens := root.Filter(func(r eventhorizon.Response) bool { return r.Subscription.ProducerPartition == "b" })
	evens.OnSuccess(got.record("ok"))
	evens.OnFailure(got.record("failed"))

	root.Publish(response(consumerTenant, "a", false))
	root.Publish(response(consumerTenant, "b", true))
	root.Publish(response(consumerTenant, "b", false))

	require.Equal(t, calls{"all:a", "all:b", "failed:b", "all:b", "ok:b"}, got)
}

func TestTenantCallbacks_SeeOwnTenantAndPartition(t *testing.T) {
	var got calls
	root := eventhorizon.NewResponses()

	_, err := eventhorizon.NewTenantWithSubscriptionsBuilder(consumerTenant, root).
		OnCompleted(got.record("tenant")).
		ForMicroservice(producer, func(b *eventhorizon.SubscriptionBuilder) {
			b.FromProducerTenant(producerTenant).
				FromProducerStream(stream).
				FromProducerPartition("a").
				OnFailure(got.record("partition-failed")).
				ToScope(scope).
				OnSuccess(got.record("scope-ok"))
		}).
		Build()
	require.NoError(t, err)

	// the tenant id is compared by value, not by identity
	same, err := uuid.Parse(consumerTenant.String())
	require.NoError(t, err)

	root.Publish(response(uuid.New(), "a", false))
	root.Publish(response(same, "a", false))
	root.Publish(response(same, "b", false))
	root.Publish(response(same, "a", true))

	require.Equal(t, calls{"tenant:a", "scope-ok:a", "tenant:b", "tenant:a", "partition-failed:a"}, got)
}
