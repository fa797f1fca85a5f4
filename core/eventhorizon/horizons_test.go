package eventhorizon_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/eventhorizon"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/core/runtimetest"
)

var discard = slog.New(slog.DiscardHandler)

func rejectPartition(partition string) runtimetest.SubscribeFunc {
	return func(req *contracts.SubscriptionRequest) *contracts.SubscriptionResponse {
		if req.PartitionID == partition {
			return &contracts.SubscriptionResponse{
				Failure: &contracts.Failure{ID: contracts.FailureSubscriptionRejected, Reason: "no consent"},
			}
		}
		return &contracts.SubscriptionResponse{ConsentID: uuid.New()}
	}
}

func subscribeTo(partition events.PartitionID) func(*eventhorizon.SubscriptionBuilder) {
	return func(b *eventhorizon.SubscriptionBuilder) {
		b.FromProducerTenant(producerTenant).FromProducerStream(stream).FromProducerPartition(partition).ToScope(scope)
	}
}

func TestEventHorizons_Subscribe(t *testing.T) {
	rt := runtimetest.New(runtimetest.WithSubscribeFunc(rejectPartition("rejected")))
	ch := rt.Channel()
	t.Cleanup(func() { _ = ch.Close() })

	microservice := uuid.New()
	h := eventhorizon.NewEventHorizons(ch,
		execution.Static(execution.New(microservice, execution.Version{}, "Test")),
		eventhorizon.WithLog(discard),
	)

	var succeeded, failed []events.PartitionID
	var completed int
	other := uuid.New()
	tenant, err := h.ForTenant(consumerTenant).
		ForMicroservice(producer, subscribeTo("accepted")).
		ForMicroservice(other, subscribeTo("rejected")).
		OnSuccess(func(r eventhorizon.Response) { succeeded = append(succeeded, r.Subscription.ProducerPartition) }).
		OnFailure(func(r eventhorizon.Response) { failed = append(failed, r.Subscription.ProducerPartition) }).
		OnCompleted(func(eventhorizon.Response) { completed++ }).
		Build()
	require.NoError(t, err)

	responses, err := h.Subscribe(t.Context(), tenant)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	require.True(t, responses[0].Succeeded())
	require.NotEqual(t, uuid.Nil, responses[0].ConsentID)
	require.Equal(t, consumerTenant, responses[0].ConsumerTenant)
	require.False(t, responses[1].Succeeded())
	require.Equal(t, contracts.FailureSubscriptionRejected, responses[1].Failure.ID)

	require.Equal(t, []events.PartitionID{"accepted"}, succeeded)
	require.Equal(t, []events.PartitionID{"rejected"}, failed)
	require.Equal(t, 2, completed)

	reqs := rt.Subscriptions()
	require.Len(t, reqs, 2)
	require.Equal(t, producer, reqs[0].ProducerMicroservice)
	require.Equal(t, producerTenant, reqs[0].ProducerTenant)
	require.Equal(t, stream.UUID(), reqs[0].StreamID)
	require.Equal(t, "accepted", reqs[0].PartitionID)
	require.Equal(t, scope.UUID(), reqs[0].ScopeID)
	require.Equal(t, consumerTenant, reqs[0].CallContext.ExecutionContext.TenantID)
	require.Equal(t, microservice, reqs[0].CallContext.ExecutionContext.MicroserviceID)
}

func subscribeMux(handler func(*contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error)) rpc.Channel {
	m := rpc.NewMux()
	rpc.HandleUnary(m, contracts.MethodSubscribe, func(_ context.Context, req *contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
		return handler(req)
	})
	return rpc.NewMemoryChannel(m)
}

func buildTenant(t *testing.T, partitions ...events.PartitionID) eventhorizon.TenantWithSubscriptions {
	t.Helper()
	b := eventhorizon.NewTenantWithSubscriptionsBuilder(consumerTenant, nil)
	for _, p := range partitions {
		b.ForMicroservice(producer, subscribeTo(p))
	}
	tenant, err := b.Build()
	require.NoError(t, err)
	return tenant
}

func TestEventHorizons_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	ch := subscribeMux(func(*contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("unavailable")
		}
		return &contracts.SubscriptionResponse{ConsentID: uuid.New()}, nil
	})
	h := eventhorizon.NewEventHorizons(ch, nil,
		eventhorizon.WithLog(discard),
		eventhorizon.WithRetryPolicy(rpc.BackoffPolicy{InitialInterval: time.Millisecond, MaxTries: 5}),
	)

	responses, err := h.Subscribe(t.Context(), buildTenant(t, "a"))
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.True(t, responses[0].Succeeded())
	require.EqualValues(t, 3, calls.Load())
}

func TestEventHorizons_FailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	ch := subscribeMux(func(*contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
		calls.Add(1)
		return &contracts.SubscriptionResponse{Failure: &contracts.Failure{ID: contracts.FailureSubscriptionRejected}}, nil
	})
	h := eventhorizon.NewEventHorizons(ch, nil,
		eventhorizon.WithLog(discard),
		eventhorizon.WithRetryPolicy(rpc.BackoffPolicy{InitialInterval: time.Millisecond, MaxTries: 5}),
	)

	responses, err := h.Subscribe(t.Context(), buildTenant(t, "a"))
	require.NoError(t, err)
	require.False(t, responses[0].Succeeded())
	require.EqualValues(t, 1, calls.Load())
}

func TestEventHorizons_TransportErrorsCollected(t *testing.T) {
	ch := subscribeMux(func(req *contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
		if req.PartitionID == "broken" {
			return nil, errors.New("unavailable")
		}
		return &contracts.SubscriptionResponse{ConsentID: uuid.New()}, nil
	})
	h := eventhorizon.NewEventHorizons(ch, nil, eventhorizon.WithLog(discard))

	responses, err := h.Subscribe(t.Context(), buildTenant(t, "broken", "fine"))
	require.ErrorIs(t, err, rpc.ErrRemote)
	require.Len(t, responses, 1)
	require.Equal(t, events.PartitionID("fine"), responses[0].Subscription.ProducerPartition)
}

func TestEventHorizons_Canceled(t *testing.T) {
	var calls atomic.Int32
	ch := subscribeMux(func(*contracts.SubscriptionRequest) (*contracts.SubscriptionResponse, error) {
		calls.Add(1)
		return &contracts.SubscriptionResponse{}, nil
	})
	h := eventhorizon.NewEventHorizons(ch, nil, eventhorizon.WithLog(discard))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	responses, err := h.Subscribe(ctx, buildTenant(t, "a", "b"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, responses)
	require.Zero(t, calls.Load())
}
