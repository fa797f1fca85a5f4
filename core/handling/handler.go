package handling

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/events"
)

// HandleFunc is invoked with the decoded content of an event.
type HandleFunc func(ctx context.Context, content any, ec events.EventContext) error

// EventHandler binds event types to callbacks. It is immutable and safe
// for concurrent use.
type EventHandler struct {
	id          uuid.UUID
	scope       events.ScopeID
	partitioned bool
	handlers    *artifacts.Map[HandleFunc]
}

func (h *EventHandler) ID() uuid.UUID         { return h.id }
func (h *EventHandler) Scope() events.ScopeID { return h.scope }
func (h *EventHandler) Partitioned() bool     { return h.partitioned }

// HandledEvents returns the event types in declaration order.
func (h *EventHandler) HandledEvents() []events.EventType { return h.handlers.Keys() }

// Handle invokes the callback bound to eventType exactly once and returns
// its error. An unbound type fails with *MissingEventHandlerForTypeError.
func (h *EventHandler) Handle(ctx context.Context, content any, eventType events.EventType, ec events.EventContext) error {
	fn, ok := h.handlers.Get(eventType)
	if !ok {
		return &MissingEventHandlerForTypeError{EventType: eventType}
	}
	return fn(ctx, content, ec)
}

func (h *EventHandler) SlogAttr() slog.Attr {
	return slog.Group("event_handler",
		slog.String("id", h.id.String()),
		slog.String("scope", h.scope.String()),
		slog.Bool("partitioned", h.partitioned),
	)
}
