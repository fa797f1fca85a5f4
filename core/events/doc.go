// Package events commits events to the runtime and reads them back.
//
// # Event types
//
// Every event committed to the runtime carries an [EventType]: an artifact
// id plus a generation. [EventTypes] associates Go types with event types so
// that content can be committed without naming its type every time:
//
//	types := events.NewEventTypes()
//	events.MustAssociateEventType[AccountOpened](types, events.MustEventType("...", 0))
//
// # Committing
//
// [EventStore] sends commits over an rpc.Channel. Plain commits and
// aggregate commits share one entry point taking a [Commit] value:
//
//	res, err := store.Commit(ctx, events.Event{Content: opened, EventSourceID: "acc-1"})
//	res, err := store.Commit(ctx, events.AggregateEvents{...})
//
// and a set of named variants (CommitEvent, CommitPublicEvent, CommitEvents,
// CommitForAggregate, CommitAggregateEvents) for the common shapes.
//
// A returned error means the call did not complete: an unresolvable event
// type, a conversion problem, a transport failure or cancellation. A
// rejection by the runtime, such as an aggregate version conflict, is
// reported as data in [CommitEventsResponse.Failure] and carries no events.
package events
