package events

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
)

// EventSourceID names the stream or entity an event applies to.
type EventSourceID string

// EventSourceIDNotSet marks collections that hold no events.
const EventSourceIDNotSet EventSourceID = "00000000-0000-0000-0000-000000000000"

func NewEventSourceID(s string) (EventSourceID, error) {
	if s == "" {
		return "", ErrEventSourceIDEmpty
	}
	return EventSourceID(s), nil
}

func NewRandomEventSourceID() EventSourceID            { return EventSourceID(uuid.NewString()) }
func EventSourceIDFromUUID(id uuid.UUID) EventSourceID { return EventSourceID(id.String()) }

func (id EventSourceID) String() string                     { return string(id) }
func (id EventSourceID) IsZero() bool                       { return id == "" }
func (id EventSourceID) SlogAttr() slog.Attr                { return id.SlogAttrWithKey("event_source") }
func (id EventSourceID) SlogAttrWithKey(k string) slog.Attr { return slog.String(k, string(id)) }

// maxSafeInteger is the largest integer every JSON implementation can hold
// without losing precision.
const maxSafeInteger = 1<<53 - 1

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// naturalNumber reports whether v is an integer in [0, maxSafeInteger].
func naturalNumber[N number](v N) (uint64, bool) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > maxSafeInteger {
		return 0, false
	}
	return uint64(f), true
}

// EventLogSequenceNumber is the position of an event in the event log.
type EventLogSequenceNumber uint64

const FirstEventLogSequenceNumber EventLogSequenceNumber = 0

// EventLogSequenceNumberFrom fails for negative, fractional, non-finite and
// out of range values.
func EventLogSequenceNumberFrom[N number](v N) (EventLogSequenceNumber, error) {
	n, ok := naturalNumber(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrEventLogSequenceNumberMustBeNaturalNumber, v)
	}
	return EventLogSequenceNumber(n), nil
}

func (n EventLogSequenceNumber) Uint64() uint64      { return uint64(n) }
func (n EventLogSequenceNumber) SlogAttr() slog.Attr { return n.SlogAttrWithKey("sequence_number") }
func (n EventLogSequenceNumber) SlogAttrWithKey(key string) slog.Attr {
	return slog.Uint64(key, uint64(n))
}

// AggregateRootVersion counts the events an aggregate root applied to one
// event source.
type AggregateRootVersion uint64

const InitialAggregateRootVersion AggregateRootVersion = 0

func AggregateRootVersionFrom[N number](v N) (AggregateRootVersion, error) {
	n, ok := naturalNumber(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrAggregateRootVersionMustBeNaturalNumber, v)
	}
	return AggregateRootVersion(n), nil
}

func (v AggregateRootVersion) Uint64() uint64             { return uint64(v) }
func (v AggregateRootVersion) Next() AggregateRootVersion { return v + 1 }
func (v AggregateRootVersion) SlogAttr() slog.Attr        { return v.SlogAttrWithKey("aggregate_version") }
func (v AggregateRootVersion) SlogAttrWithKey(key string) slog.Attr {
	return slog.Uint64(key, uint64(v))
}

type (
	ScopeID  uuid.UUID
	StreamID uuid.UUID
	// PartitionID is text on the wire; partitions of a partitioned stream
	// are event source ids.
	PartitionID string
)

var (
	DefaultScope  = ScopeID(uuid.Nil)
	DefaultStream = StreamID(uuid.Nil)
)

const DefaultPartition PartitionID = "00000000-0000-0000-0000-000000000000"

func PartitionFromEventSource(id EventSourceID) PartitionID { return PartitionID(id) }

func (s ScopeID) UUID() uuid.UUID         { return uuid.UUID(s) }
func (s ScopeID) String() string          { return uuid.UUID(s).String() }
func (s ScopeID) IsDefault() bool         { return s == DefaultScope }
func (s StreamID) UUID() uuid.UUID        { return uuid.UUID(s) }
func (s StreamID) String() string         { return uuid.UUID(s).String() }
func (p PartitionID) String() string      { return string(p) }
func (p PartitionID) SlogAttr() slog.Attr { return slog.String("partition", string(p)) }
