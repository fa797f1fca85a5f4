// Package handling dispatches committed events to event handlers.
//
// Handlers are declared with a [Builder] at startup:
//
//	b := handling.NewBuilder()
//	b.CreateEventHandler(id, func(h *handling.EventHandlerBuilder) {
//		h.Partitioned()
//		handling.Handle(h, func(ctx context.Context, e AccountOpened, ec events.EventContext) error {
//			return nil
//		})
//	})
//	handlers, err := b.Build(eventTypes)
//
// An [EventHandler] is immutable once built. [EventHandlers] registers
// handlers with the runtime and processes the events it pushes back over a
// stream. Events of one partition are never dispatched concurrently.
package handling
