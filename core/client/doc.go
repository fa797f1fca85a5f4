// Package client bootstraps an event store client: it fills the event type
// and aggregate root registries, builds event handlers and event horizon
// subscriptions, and keeps them running against one rpc.Channel.
//
// # Basic Usage
//
//	c, err := client.Run(client.Config{
//	    Microservice: microserviceID,
//	    Channel:      ch,
//	    EventTypes: func(t *events.EventTypes) error {
//	        return events.AssociateEventType[AccountOpened](t, accountOpened)
//	    },
//	    EventHandlers: func(b *handling.Builder) {
//	        b.CreateEventHandler(handlerID, func(h *handling.EventHandlerBuilder) {
//	            handling.Handle(h, onAccountOpened)
//	        })
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := c.EventStore().CommitEvent(ctx, AccountOpened{}, "account-1")
//
//	// Graceful shutdown
//	c.Shutdown(ctx)
//
// Without a Channel the client talks to an in-process runtime, which is
// handy for tests and local development.
package client
