package handling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/rpc"
)

// EventHandlers holds the event handlers of a client and keeps them
// registered with the runtime.
type EventHandlers struct {
	ch       rpc.Channel
	conv     *events.Converter
	provider execution.Provider
	opts     handlersOptions

	mu       sync.RWMutex
	handlers []*EventHandler
	byID     map[uuid.UUID]*EventHandler
}

func NewEventHandlers(ch rpc.Channel, conv *events.Converter, provider execution.Provider, opts ...Option) *EventHandlers {
	o := handlersOptions{
		log:            slog.Default(),
		metrics:        NopMetrics(),
		reconnectDelay: time.Second,
	}
	for _, opt := range opts {
		opt.applyToHandlers(&o)
	}
	if provider == nil {
		provider = execution.Static(execution.New(uuid.Nil, execution.Version{}, ""))
	}
	return &EventHandlers{
		ch:       ch,
		conv:     conv,
		provider: provider,
		opts:     o,
		byID:     make(map[uuid.UUID]*EventHandler),
	}
}

// Register adds handlers. Ids must be unique across all registered handlers.
func (r *EventHandlers) Register(handlers ...*EventHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, h := range handlers {
		if _, ok := r.byID[h.id]; ok {
			return fmt.Errorf("%w: %s", ErrEventHandlerAlreadyDefined, h.id)
		}
		for _, other := range handlers[:i] {
			if other.id == h.id {
				return fmt.Errorf("%w: %s", ErrEventHandlerAlreadyDefined, h.id)
			}
		}
	}
	for _, h := range handlers {
		r.byID[h.id] = h
		r.handlers = append(r.handlers, h)
	}
	return nil
}

func (r *EventHandlers) Get(id uuid.UUID) (*EventHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// All returns the handlers in registration order.
func (r *EventHandlers) All() []*EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*EventHandler(nil), r.handlers...)
}

// Processor returns a processor bound to the channel of r.
func (r *EventHandlers) Processor(h *EventHandler) *Processor {
	return &Processor{
		handler:  h,
		ch:       r.ch,
		conv:     r.conv,
		provider: r.provider,
		opts:     r.opts,
		log:      r.opts.log.With(h.SlogAttr()),
	}
}

// Start keeps every handler registered until ctx is done. It returns nil
// once ctx is canceled.
func (r *EventHandlers) Start(ctx context.Context) error {
	handlers := r.All()
	r.opts.log.Info("starting event handlers", slog.Int("count", len(handlers)))

	eg, ctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		p := r.Processor(h)
		eg.Go(func() error {
			return p.RegisterForever(ctx, r.opts.retry)
		})
	}
	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
