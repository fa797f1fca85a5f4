package events

import (
	"iter"
	"reflect"
)

// UncommittedEvent is an event about to be committed. A zero EventType is
// resolved from the content.
type UncommittedEvent struct {
	Content       any
	EventSourceID EventSourceID
	EventType     EventType
	Public        bool
}

type UncommittedAggregateEvent struct {
	Content   any
	EventType EventType
	Public    bool
}

// UncommittedAggregateEvents is a batch applied by one aggregate root to one
// event source. ExpectedAggregateRootVersion is the version the commit is
// based on; the runtime rejects the batch when the stored version differs.
//
// AggregateRoot may be left zero when AggregateRootKind is associated in
// the client's AggregateRootTypes.
type UncommittedAggregateEvents struct {
	EventSourceID                EventSourceID
	AggregateRoot                AggregateRootType
	AggregateRootKind            reflect.Type
	ExpectedAggregateRootVersion AggregateRootVersion
	Events                       []UncommittedAggregateEvent
}

func NewUncommittedAggregateEvents(
	source EventSourceID,
	root AggregateRootType,
	expected AggregateRootVersion,
	events ...UncommittedAggregateEvent,
) UncommittedAggregateEvents {
	return UncommittedAggregateEvents{
		EventSourceID:                source,
		AggregateRoot:                root,
		ExpectedAggregateRootVersion: expected,
		Events:                       events,
	}
}

func (u UncommittedAggregateEvents) All() iter.Seq[UncommittedAggregateEvent] {
	return func(yield func(UncommittedAggregateEvent) bool) {
		for _, e := range u.Events {
			if !yield(e) {
				return
			}
		}
	}
}

func (u UncommittedAggregateEvents) Len() int { return len(u.Events) }
