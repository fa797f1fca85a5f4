package events

import (
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/internal/codec"
)

var protoMessageType = reflect.TypeFor[proto.Message]()

// Converter translates between events and their wire messages.
//
// Content of a type associated in EventTypes is decoded into a fresh value
// of that type (a pointer for protobuf messages). Other content is decoded
// into its generic JSON shape, usually map[string]any.
type Converter struct {
	codec      codec.Codec
	eventTypes *EventTypes
}

// NewConverter uses the default codec when c is nil.
func NewConverter(c codec.Codec, eventTypes *EventTypes) *Converter {
	if c == nil {
		c = codec.Default()
	}
	if eventTypes == nil {
		eventTypes = NewEventTypes()
	}
	return &Converter{codec: c, eventTypes: eventTypes}
}

func (c *Converter) ToWireUncommittedEvent(
	content any,
	eventSourceID EventSourceID,
	eventType EventType,
	public bool,
) (*contracts.UncommittedEvent, error) {
	data, err := c.encode(content, eventType)
	if err != nil {
		return nil, err
	}
	return &contracts.UncommittedEvent{
		EventSourceID: string(eventSourceID),
		EventType:     artifacts.ToContract(eventType),
		Content:       data,
		Public:        public,
	}, nil
}

func (c *Converter) ToWireUncommittedAggregateEvent(
	content any,
	eventType EventType,
	public bool,
) (*contracts.UncommittedAggregateEvent, error) {
	data, err := c.encode(content, eventType)
	if err != nil {
		return nil, err
	}
	return &contracts.UncommittedAggregateEvent{
		EventType: artifacts.ToContract(eventType),
		Content:   data,
		Public:    public,
	}, nil
}

func (c *Converter) encode(content any, eventType EventType) ([]byte, error) {
	data, err := c.codec.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("%w: encode content of %s: %w", ErrConversion, eventType, err)
	}
	return data, nil
}

// FromWire converts a committed event received from the runtime.
func (c *Converter) FromWire(w *contracts.CommittedEvent) (CommittedEvent, error) {
	if w == nil {
		return CommittedEvent{}, fmt.Errorf("%w: no event", ErrConversion)
	}
	ec, err := execution.FromContract(w.ExecutionContext)
	if err != nil {
		return CommittedEvent{}, fmt.Errorf("%w: event %d", err, w.EventLogSequenceNumber)
	}
	et, err := artifacts.FromContract(w.EventType)
	if err != nil {
		return CommittedEvent{}, fmt.Errorf("%w: event %d: event type: %w", ErrConversion, w.EventLogSequenceNumber, err)
	}
	content, err := c.DecodeContent(et, w.Content)
	if err != nil {
		return CommittedEvent{}, err
	}

	e := CommittedEvent{
		EventLogSequenceNumber:         EventLogSequenceNumber(w.EventLogSequenceNumber),
		Occurred:                       w.Occurred,
		EventSourceID:                  EventSourceID(w.EventSourceID),
		ExecutionContext:               ec,
		EventType:                      et,
		Content:                        content,
		Public:                         w.Public,
		External:                       w.External,
		ExternalEventLogSequenceNumber: EventLogSequenceNumber(w.ExternalEventLogSequenceNumber),
		ExternalEventReceived:          w.ExternalEventReceived,
	}
	if a := w.Aggregate; a != nil {
		root, err := artifacts.FromContract(a.AggregateRootID)
		if err != nil && a.WasAppliedByAggregate {
			return CommittedEvent{}, fmt.Errorf("%w: event %d: aggregate root: %w", ErrConversion, w.EventLogSequenceNumber, err)
		}
		e.Aggregate = &AggregateLinkage{
			WasAppliedByAggregate: a.WasAppliedByAggregate,
			AggregateRoot:         root,
			AggregateRootVersion:  AggregateRootVersion(a.AggregateRootVersion),
		}
	}
	return e, nil
}

func (c *Converter) FromWireAggregate(w *contracts.CommittedAggregateEvents) (CommittedAggregateEvents, error) {
	if w == nil {
		return EmptyCommittedAggregateEvents, nil
	}
	root, err := artifacts.FromContract(w.AggregateRootID)
	if err != nil {
		return CommittedAggregateEvents{}, fmt.Errorf("%w: aggregate root: %w", ErrConversion, err)
	}
	out := make([]CommittedEvent, 0, len(w.Events))
	for i := range w.Events {
		e, err := c.FromWire(&w.Events[i])
		if err != nil {
			return CommittedAggregateEvents{}, err
		}
		out = append(out, e)
	}
	return CommittedAggregateEvents{
		EventSourceID: EventSourceID(w.EventSourceID),
		AggregateRoot: root,
		events:        out,
	}, nil
}

// DecodeContent decodes data as content of event type et.
func (c *Converter) DecodeContent(et EventType, data []byte) (any, error) {
	kind, err := c.eventTypes.GetFor(et)
	if errors.Is(err, ErrUnknownEventType) {
		if len(data) == 0 {
			return nil, nil
		}
		var generic any
		if err := c.codec.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: decode content of %s: %w", ErrConversion, et, err)
		}
		return generic, nil
	}

	ptr := reflect.New(kind)
	if len(data) > 0 {
		if err := c.codec.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("%w: decode content of %s: %w", ErrConversion, et, err)
		}
	}
	if ptr.Type().Implements(protoMessageType) {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

func (c *Converter) fromWireEvents(ws []contracts.CommittedEvent) (CommittedEvents, error) {
	if len(ws) == 0 {
		return EmptyCommittedEvents, nil
	}
	out := make([]CommittedEvent, 0, len(ws))
	for i := range ws {
		e, err := c.FromWire(&ws[i])
		if err != nil {
			return CommittedEvents{}, err
		}
		out = append(out, e)
	}
	return CommittedEvents{events: out}, nil
}
