package events

import "reflect"

// Commit is one of Event, PublicEvent, Events, AggregateEvent or
// AggregateEvents. The set is closed.
type Commit interface {
	isCommit()
}

type (
	// Event commits private content to an event source.
	Event struct {
		Content       any
		EventSourceID EventSourceID
		EventType     EventType
	}

	// PublicEvent commits content that other microservices may subscribe to.
	PublicEvent struct {
		Content       any
		EventSourceID EventSourceID
		EventType     EventType
	}

	// Events commits a batch atomically, in order.
	Events []UncommittedEvent

	// AggregateEvent commits one event applied by an aggregate root.
	AggregateEvent struct {
		Content                      any
		EventSourceID                EventSourceID
		EventType                    EventType
		Public                       bool
		AggregateRoot                AggregateRootType
		AggregateRootKind            reflect.Type
		ExpectedAggregateRootVersion AggregateRootVersion
	}

	// AggregateEvents commits a batch applied by an aggregate root.
	AggregateEvents UncommittedAggregateEvents
)

func (Event) isCommit()           {}
func (PublicEvent) isCommit()     {}
func (Events) isCommit()          {}
func (AggregateEvent) isCommit()  {}
func (AggregateEvents) isCommit() {}

func (e AggregateEvent) batch() UncommittedAggregateEvents {
	return UncommittedAggregateEvents{
		EventSourceID:                e.EventSourceID,
		AggregateRoot:                e.AggregateRoot,
		AggregateRootKind:            e.AggregateRootKind,
		ExpectedAggregateRootVersion: e.ExpectedAggregateRootVersion,
		Events: []UncommittedAggregateEvent{{
			Content:   e.Content,
			EventType: e.EventType,
			Public:    e.Public,
		}},
	}
}
