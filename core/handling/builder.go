package handling

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/events"
)

// Builder collects event handler declarations. Errors are reported by Build.
type Builder struct {
	handlers []*EventHandlerBuilder
	errs     []error
}

func NewBuilder() *Builder { return &Builder{} }

// CreateEventHandler declares the handler id and lets configure fill it in.
func (b *Builder) CreateEventHandler(id uuid.UUID, configure func(*EventHandlerBuilder)) *Builder {
	for _, h := range b.handlers {
		if h.id == id {
			b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrEventHandlerAlreadyDefined, id))
			return b
		}
	}
	h := &EventHandlerBuilder{id: id, scope: events.DefaultScope, partitioned: true}
	if configure != nil {
		configure(h)
	}
	b.handlers = append(b.handlers, h)
	return b
}

// Build resolves the declared bindings against eventTypes.
func (b *Builder) Build(eventTypes *events.EventTypes) ([]*EventHandler, error) {
	errs := append([]error(nil), b.errs...)
	out := make([]*EventHandler, 0, len(b.handlers))
	for _, hb := range b.handlers {
		h, err := hb.build(eventTypes)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, h)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

type binding struct {
	eventType events.EventType
	kind      reflect.Type // resolved at build when eventType is zero
	fn        HandleFunc
}

// EventHandlerBuilder declares one event handler. Handlers are partitioned
// and live in the default scope unless configured otherwise.
type EventHandlerBuilder struct {
	id          uuid.UUID
	scope       events.ScopeID
	partitioned bool
	bindings    []binding
}

func (b *EventHandlerBuilder) InScope(scope events.ScopeID) *EventHandlerBuilder {
	b.scope = scope
	return b
}

func (b *EventHandlerBuilder) Partitioned() *EventHandlerBuilder {
	b.partitioned = true
	return b
}

func (b *EventHandlerBuilder) Unpartitioned() *EventHandlerBuilder {
	b.partitioned = false
	return b
}

// HandleEventType binds fn to et. Content arrives as decoded by the
// converter: the associated Go type, or generic JSON.
func (b *EventHandlerBuilder) HandleEventType(et events.EventType, fn HandleFunc) *EventHandlerBuilder {
	b.bindings = append(b.bindings, binding{eventType: et, fn: fn})
	return b
}

// Handle binds fn to the event type associated with T.
func Handle[T any](b *EventHandlerBuilder, fn func(ctx context.Context, event T, ec events.EventContext) error) *EventHandlerBuilder {
	kind := reflect.TypeFor[T]()
	b.bindings = append(b.bindings, binding{kind: kind, fn: typed(kind, fn)})
	return b
}

// HandleAs binds fn to et with content of type T.
func HandleAs[T any](b *EventHandlerBuilder, et events.EventType, fn func(ctx context.Context, event T, ec events.EventContext) error) *EventHandlerBuilder {
	return b.HandleEventType(et, typed(reflect.TypeFor[T](), fn))
}

func typed[T any](kind reflect.Type, fn func(context.Context, T, events.EventContext) error) HandleFunc {
	return func(ctx context.Context, content any, ec events.EventContext) error {
		switch v := content.(type) {
		case T:
			return fn(ctx, v, ec)
		case *T:
			if v != nil {
				return fn(ctx, *v, ec)
			}
		}
		return fmt.Errorf("%w: got %T, want %s", ErrUnexpectedContent, content, kind)
	}
}

func (b *EventHandlerBuilder) build(eventTypes *events.EventTypes) (*EventHandler, error) {
	handlers := artifacts.NewMap[HandleFunc]()
	for _, bd := range b.bindings {
		et := bd.eventType
		if et.IsZero() {
			if eventTypes == nil {
				return nil, fmt.Errorf("event handler %s: %w: %s", b.id, events.ErrUnknownEventType, bd.kind)
			}
			var err error
			if et, err = eventTypes.GetTypeFor(bd.kind); err != nil {
				return nil, fmt.Errorf("event handler %s: %w", b.id, err)
			}
		}
		if handlers.Has(et) {
			return nil, fmt.Errorf("event handler %s: %w: %s", b.id, ErrEventTypeAlreadyHandled, et)
		}
		handlers.Set(et, bd.fn)
	}
	return &EventHandler{
		id:          b.id,
		scope:       b.scope,
		partitioned: b.partitioned,
		handlers:    handlers,
	}, nil
}
