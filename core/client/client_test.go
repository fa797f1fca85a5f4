package client

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/eventhorizon"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/handling"
	"github.com/codewandler/esclient-go/core/rpc"
)

type (
	OrderPlaced  struct{ ID string }
	OrderShipped struct{ ID string }
	Order        struct{}
)

var (
	orderPlaced  = events.MustEventType("1e2d3c4b-5a69-4788-9a0b-1c2d3e4f5a01", 0)
	orderShipped = events.MustEventType("1e2d3c4b-5a69-4788-9a0b-1c2d3e4f5a02", 0)
	orderRoot    = events.MustEventType("1e2d3c4b-5a69-4788-9a0b-1c2d3e4f5a03", 0)
	handlerID    = uuid.MustParse("1e2d3c4b-5a69-4788-9a0b-1c2d3e4f5a04")
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func registerTypes(t *events.EventTypes) error {
	return errors.Join(
		events.AssociateEventType[OrderPlaced](t, orderPlaced),
		events.AssociateEventType[OrderShipped](t, orderShipped),
	)
}

func TestClient(t *testing.T) {
	var handled atomic.Int32
	var subscribed atomic.Int32
	tenant := uuid.New()

	c, err := Run(Config{
		Log:          discard(),
		Microservice: uuid.New(),
		Version:      execution.Version{Major: 1},
		Tenant:       tenant,
		EventTypes:   registerTypes,
		AggregateRoots: func(r *events.AggregateRootTypes) error {
			return events.AssociateAggregateRoot[Order](r, orderRoot)
		},
		EventHandlers: func(b *handling.Builder) {
			b.CreateEventHandler(handlerID, func(h *handling.EventHandlerBuilder) {
				handling.Handle(h, func(_ context.Context, e OrderPlaced, ec events.EventContext) error {
					if e.ID == "o-1" && ec.ExecutionContext.TenantID == tenant {
						handled.Add(1)
					}
					return nil
				})
			})
		},
		Subscriptions: []TenantSubscriptions{{
			Tenant: tenant,
			Configure: func(b *eventhorizon.TenantWithSubscriptionsBuilder) {
				b.ForMicroservice(uuid.New(), func(sb *eventhorizon.SubscriptionBuilder) {
					sb.FromProducerTenant(uuid.New()).
						FromProducerStream(events.DefaultStream).
						FromProducerPartition(events.DefaultPartition).
						ToScope(events.DefaultScope)
				})
				b.OnSuccess(func(eventhorizon.Response) { subscribed.Add(1) })
			},
		}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	require.EqualValues(t, 1, subscribed.Load())
	require.Equal(t, tenant, c.ExecutionContext().TenantID)
	require.True(t, c.EventTypes().HasFor(orderPlaced))
	require.True(t, c.AggregateRoots().HasTypeFor(reflect.TypeFor[Order]()))
	_, ok := c.EventHandlers().Get(handlerID)
	require.True(t, ok)
	require.NotNil(t, c.EventHorizons())

	res, err := c.EventStore().CommitEvent(t.Context(), OrderPlaced{ID: "o-1"}, "order-1")
	require.NoError(t, err)
	require.False(t, res.Failed())

	require.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ConfigErrors(t *testing.T) {
	_, err := New(Config{
		Log: discard(),
		EventTypes: func(t *events.EventTypes) error {
			return errors.Join(
				events.AssociateEventType[OrderPlaced](t, orderPlaced),
				events.AssociateEventType[OrderShipped](t, orderPlaced),
			)
		},
	})
	require.ErrorIs(t, err, events.ErrEventTypeAlreadyAssociated)

	_, err = New(Config{
		Log:        discard(),
		EventTypes: registerTypes,
		EventHandlers: func(b *handling.Builder) {
			b.CreateEventHandler(handlerID, nil).CreateEventHandler(handlerID, nil)
		},
	})
	require.ErrorIs(t, err, handling.ErrEventHandlerAlreadyDefined)

	_, err = New(Config{
		Log: discard(),
		Subscriptions: []TenantSubscriptions{{
			Tenant:    uuid.New(),
			Configure: func(b *eventhorizon.TenantWithSubscriptionsBuilder) { b.ForMicroservice(uuid.New(), nil) },
		}},
	})
	require.ErrorIs(t, err, eventhorizon.ErrSubscriptionDefinitionIncomplete)
}

type closeCounting struct {
	rpc.Channel
	closed atomic.Int32
}

func (c *closeCounting) Close() error {
	c.closed.Add(1)
	return c.Channel.Close()
}

// swapInProcessChannel records every in-process channel New creates.
func swapInProcessChannel(t *testing.T) *[]*closeCounting {
	t.Helper()
	var created []*closeCounting
	orig := inProcessChannel
	inProcessChannel = func(log *slog.Logger) rpc.Channel {
		ch := &closeCounting{Channel: orig(log)}
		created = append(created, ch)
		return ch
	}
	t.Cleanup(func() { inProcessChannel = orig })
	return &created
}

func TestNew_ClosesOwnedChannelOnError(t *testing.T) {
	created := swapInProcessChannel(t)

	_, err := New(Config{
		Log: discard(),
		Subscriptions: []TenantSubscriptions{{
			Tenant:    uuid.New(),
			Configure: func(b *eventhorizon.TenantWithSubscriptionsBuilder) { b.ForMicroservice(uuid.New(), nil) },
		}},
	})
	require.ErrorIs(t, err, eventhorizon.ErrSubscriptionDefinitionIncomplete)
	require.Len(t, *created, 1)
	require.EqualValues(t, 1, (*created)[0].closed.Load())

	c, err := New(Config{Log: discard(), EventTypes: registerTypes})
	require.NoError(t, err)
	require.Len(t, *created, 2)
	require.Zero(t, (*created)[1].closed.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
	require.EqualValues(t, 1, (*created)[1].closed.Load())
}

func TestNew_KeepsGivenChannelOnError(t *testing.T) {
	ch := &closeCounting{Channel: inProcessChannel(discard())}
	t.Cleanup(func() { _ = ch.Channel.Close() })

	_, err := New(Config{
		Log:     discard(),
		Channel: ch,
		Subscriptions: []TenantSubscriptions{{
			Tenant:    uuid.New(),
			Configure: func(b *eventhorizon.TenantWithSubscriptionsBuilder) { b.ForMicroservice(uuid.New(), nil) },
		}},
	})
	require.Error(t, err)
	require.Zero(t, ch.closed.Load())
}

func TestClient_Shutdown(t *testing.T) {
	c, err := Run(Config{Log: discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() should be closed after Shutdown")
	}

	require.ErrorIs(t, c.Start(), context.Canceled)
}

func TestClient_Stop(t *testing.T) {
	c, err := New(Config{Log: discard()})
	require.NoError(t, err)

	c.Stop()
	c.Stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() should be closed after Stop")
	}
}
