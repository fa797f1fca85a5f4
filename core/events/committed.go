package events

import (
	"iter"
	"time"

	"github.com/codewandler/esclient-go/core/execution"
)

// AggregateLinkage is present on events committed by an aggregate root.
type AggregateLinkage struct {
	WasAppliedByAggregate bool
	AggregateRoot         AggregateRootType
	AggregateRootVersion  AggregateRootVersion
}

// CommittedEvent is an event stored by the runtime.
type CommittedEvent struct {
	EventLogSequenceNumber EventLogSequenceNumber
	Occurred               time.Time
	EventSourceID          EventSourceID
	ExecutionContext       execution.ExecutionContext
	EventType              EventType
	Content                any
	Public                 bool

	// set for events received from another microservice
	External                       bool
	ExternalEventLogSequenceNumber EventLogSequenceNumber
	ExternalEventReceived          time.Time

	Aggregate *AggregateLinkage
}

// Context returns the handler view of e.
func (e CommittedEvent) Context() EventContext {
	return EventContext{
		SequenceNumber:   e.EventLogSequenceNumber,
		EventSourceID:    e.EventSourceID,
		Occurred:         e.Occurred,
		ExecutionContext: e.ExecutionContext,
	}
}

// EventContext is passed to event handlers with the content.
type EventContext struct {
	SequenceNumber   EventLogSequenceNumber
	EventSourceID    EventSourceID
	Occurred         time.Time
	ExecutionContext execution.ExecutionContext
	Partition        PartitionID
	RetryCount       uint32
}

// CommittedEvents is an immutable ordered sequence of committed events.
type CommittedEvents struct {
	events []CommittedEvent
}

// EmptyCommittedEvents holds no events.
var EmptyCommittedEvents = CommittedEvents{}

func NewCommittedEvents(events ...CommittedEvent) CommittedEvents {
	if len(events) == 0 {
		return EmptyCommittedEvents
	}
	return CommittedEvents{events: append([]CommittedEvent(nil), events...)}
}

// All yields the events in commit order. The sequence can be ranged over any
// number of times.
func (c CommittedEvents) All() iter.Seq2[int, CommittedEvent] {
	return func(yield func(int, CommittedEvent) bool) {
		for i, e := range c.events {
			if !yield(i, e) {
				return
			}
		}
	}
}

func (c CommittedEvents) Len() int                { return len(c.events) }
func (c CommittedEvents) IsEmpty() bool           { return len(c.events) == 0 }
func (c CommittedEvents) At(i int) CommittedEvent { return c.events[i] }
func (c CommittedEvents) Slice() []CommittedEvent { return append([]CommittedEvent(nil), c.events...) }

// CommittedAggregateEvents are the events of one aggregate root instance.
type CommittedAggregateEvents struct {
	EventSourceID EventSourceID
	AggregateRoot AggregateRootType
	events        []CommittedEvent
}

// EmptyCommittedAggregateEvents holds no events and no event source.
var EmptyCommittedAggregateEvents = CommittedAggregateEvents{EventSourceID: EventSourceIDNotSet}

func NewCommittedAggregateEvents(source EventSourceID, root AggregateRootType, events ...CommittedEvent) CommittedAggregateEvents {
	return CommittedAggregateEvents{
		EventSourceID: source,
		AggregateRoot: root,
		events:        append([]CommittedEvent(nil), events...),
	}
}

// AggregateRootVersion is the version after the last event, or the initial
// version when there are none.
func (c CommittedAggregateEvents) AggregateRootVersion() AggregateRootVersion {
	if len(c.events) == 0 {
		return InitialAggregateRootVersion
	}
	last := c.events[len(c.events)-1]
	if last.Aggregate == nil {
		return InitialAggregateRootVersion
	}
	return last.Aggregate.AggregateRootVersion
}

func (c CommittedAggregateEvents) All() iter.Seq2[int, CommittedEvent] {
	return CommittedEvents{events: c.events}.All()
}

func (c CommittedAggregateEvents) Len() int                { return len(c.events) }
func (c CommittedAggregateEvents) IsEmpty() bool           { return len(c.events) == 0 }
func (c CommittedAggregateEvents) At(i int) CommittedEvent { return c.events[i] }
func (c CommittedAggregateEvents) Events() CommittedEvents { return CommittedEvents{events: c.events} }
