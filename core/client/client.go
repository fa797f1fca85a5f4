package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/esclient-go/core/eventhorizon"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/handling"
	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/core/runtimetest"
)

// TenantSubscriptions declares the event horizon subscriptions of one
// consumer tenant.
type TenantSubscriptions struct {
	Tenant    uuid.UUID
	Configure func(*eventhorizon.TenantWithSubscriptionsBuilder)
}

type MetricsConfig struct {
	Store    events.Metrics
	Handlers handling.Metrics
	RPC      rpc.Metrics
}

type Config struct {
	Context context.Context
	Log     *slog.Logger

	// Channel to the runtime. Nil runs an in-process runtime.
	Channel rpc.Channel

	Microservice uuid.UUID
	Version      execution.Version
	Environment  string
	// Tenant of the base execution context, the development tenant if zero.
	Tenant uuid.UUID

	// Retry is used by the store, handler registration and subscriptions.
	// Nil keeps store and subscriptions to a single attempt.
	Retry rpc.RetryPolicy

	EventTypes     func(*events.EventTypes) error
	AggregateRoots func(*events.AggregateRootTypes) error
	EventHandlers  func(*handling.Builder)
	Subscriptions  []TenantSubscriptions

	Metrics MetricsConfig
}

// inProcessChannel serves clients configured without a channel.
var inProcessChannel = func(log *slog.Logger) rpc.Channel {
	return runtimetest.New(runtimetest.WithLog(log)).Channel()
}

type Client struct {
	ctx          context.Context
	cancelCtx    context.CancelFunc
	log          *slog.Logger
	ch           rpc.Channel
	closeChannel bool

	execution      *execution.Manager
	eventTypes     *events.EventTypes
	aggregateRoots *events.AggregateRootTypes
	store          *events.EventStore
	handlers       *handling.EventHandlers
	horizons       *eventhorizon.EventHorizons
	tenants        []eventhorizon.TenantWithSubscriptions

	mu      sync.Mutex
	stopped bool
	eg      *errgroup.Group
	err     error
	done    chan struct{}
}

func New(config Config) (c *Client, err error) {
	c = &Client{done: make(chan struct{})}

	// === logger ===
	if config.Log == nil {
		config.Log = slog.Default()
	}
	c.log = config.Log.With(slog.String("microservice", config.Microservice.String()))

	// === execution context ===
	c.execution = execution.NewManager(config.Microservice, config.Version, config.Environment)
	if config.Tenant != uuid.Nil {
		c.execution.SetTenant(config.Tenant)
	}

	// === registries ===
	c.eventTypes = events.NewEventTypes()
	if config.EventTypes != nil {
		if err := config.EventTypes(c.eventTypes); err != nil {
			return nil, fmt.Errorf("event types: %w", err)
		}
	}
	c.aggregateRoots = events.NewAggregateRootTypes()
	if config.AggregateRoots != nil {
		if err := config.AggregateRoots(c.aggregateRoots); err != nil {
			return nil, fmt.Errorf("aggregate roots: %w", err)
		}
	}

	b := handling.NewBuilder()
	if config.EventHandlers != nil {
		config.EventHandlers(b)
	}
	handlers, err := b.Build(c.eventTypes)
	if err != nil {
		return nil, fmt.Errorf("event handlers: %w", err)
	}

	// === channel ===
	c.ch = config.Channel
	if c.ch == nil {
		c.ch = inProcessChannel(c.log)
		c.closeChannel = true
	}
	c.ch = rpc.Instrument(c.ch, config.Metrics.RPC)
	if c.closeChannel {
		ch := c.ch
		defer func() {
			if err != nil {
				_ = ch.Close()
			}
		}()
	}

	// === components ===
	storeOpts := []events.StoreOption{events.WithLog(c.log)}
	handlerOpts := []handling.Option{handling.WithLog(c.log)}
	horizonOpts := []eventhorizon.Option{eventhorizon.WithLog(c.log)}
	if config.Retry != nil {
		storeOpts = append(storeOpts, events.WithRetryPolicy(config.Retry))
		handlerOpts = append(handlerOpts, handling.WithRetryPolicy(config.Retry))
		horizonOpts = append(horizonOpts, eventhorizon.WithRetryPolicy(config.Retry))
	}
	if config.Metrics.Store != nil {
		storeOpts = append(storeOpts, events.WithMetrics(config.Metrics.Store))
	}
	if config.Metrics.Handlers != nil {
		handlerOpts = append(handlerOpts, handling.WithMetrics(config.Metrics.Handlers))
	}

	c.store = events.NewEventStore(c.ch, c.eventTypes, c.aggregateRoots, c.execution, storeOpts...)
	c.handlers = handling.NewEventHandlers(c.ch, c.store.Converter(), c.execution, handlerOpts...)
	if err := c.handlers.Register(handlers...); err != nil {
		return nil, err
	}

	c.horizons = eventhorizon.NewEventHorizons(c.ch, c.execution, horizonOpts...)
	for _, ts := range config.Subscriptions {
		tb := c.horizons.ForTenant(ts.Tenant)
		if ts.Configure != nil {
			ts.Configure(tb)
		}
		tenant, err := tb.Build()
		if err != nil {
			return nil, fmt.Errorf("subscriptions of tenant %s: %w", ts.Tenant, err)
		}
		c.tenants = append(c.tenants, tenant)
	}

	// === context ===
	if config.Context == nil {
		config.Context = context.Background()
	}
	c.ctx, c.cancelCtx = context.WithCancel(config.Context)
	c.eg = new(errgroup.Group)
	go c.wait()

	c.log.Debug("client created",
		slog.Int("event_types", len(c.eventTypes.Kinds())),
		slog.Int("event_handlers", len(handlers)),
		slog.Int("subscribed_tenants", len(c.tenants)),
	)
	return c, nil
}

func (c *Client) EventTypes() *events.EventTypes               { return c.eventTypes }
func (c *Client) AggregateRoots() *events.AggregateRootTypes   { return c.aggregateRoots }
func (c *Client) EventStore() *events.EventStore               { return c.store }
func (c *Client) EventHandlers() *handling.EventHandlers       { return c.handlers }
func (c *Client) EventHorizons() *eventhorizon.EventHorizons   { return c.horizons }
func (c *Client) ExecutionContext() execution.ExecutionContext { return c.execution.Current() }

// Start keeps the event handlers registered in the background and requests
// the configured subscriptions. It returns the subscription error, if any.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return context.Canceled
	}
	c.eg.Go(func() error { return c.handlers.Start(c.ctx) })
	c.mu.Unlock()

	c.log.Info("client started")

	if len(c.tenants) == 0 {
		return nil
	}
	if _, err := c.horizons.Subscribe(c.ctx, c.tenants...); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Stop cancels the client without waiting. It is idempotent.
func (c *Client) Stop() {
	c.cancelCtx()
}

// Shutdown stops the client and waits until the background work is done or
// ctx ends.
func (c *Client) Shutdown(ctx context.Context) error {
	c.Stop()
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the client stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) wait() {
	<-c.ctx.Done()
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.err = c.eg.Wait()
	if c.closeChannel {
		_ = c.ch.Close()
	}
	c.log.Info("client stopped")
	close(c.done)
}

// Run creates and starts a client.
func Run(config Config) (*Client, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		c.Stop()
		return nil, err
	}
	return c, nil
}
