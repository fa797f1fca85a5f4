package events_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
)

var protoEventType = events.MustEventType("0c5e5d1a-8b6f-4a3e-9d2c-1f0e4b7a6c60", 0)

// committedFromUncommitted plays the runtime: it stamps what the server
// would assign.
func committedFromUncommitted(w *contracts.UncommittedEvent, seq uint64) *contracts.CommittedEvent {
	ec := execution.New(uuid.New(), execution.Version{Major: 1}, "Test")
	return &contracts.CommittedEvent{
		EventLogSequenceNumber: seq,
		Occurred:               time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC),
		EventSourceID:          w.EventSourceID,
		ExecutionContext:       execution.ToContract(ec),
		EventType:              w.EventType,
		Content:                w.Content,
		Public:                 w.Public,
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	et := newEventTypes(t)
	require.NoError(t, events.AssociateEventType[wrapperspb.StringValue](et, protoEventType))
	conv := events.NewConverter(nil, et)

	for name, tc := range map[string]struct {
		content   any
		eventType events.EventType
		public    bool
		want      any
	}{
		"registered struct":     {content: AccountOpened{Owner: "ann", Balance: 10}, eventType: accountOpenedType, want: AccountOpened{Owner: "ann", Balance: 10}},
		"registered pointer":    {content: &AccountClosed{Reason: "done"}, eventType: accountClosedType, public: true, want: AccountClosed{Reason: "done"}},
		"unregistered explicit": {content: map[string]any{"n": 1.5, "s": "x"}, eventType: selfType, want: map[string]any{"n": 1.5, "s": "x"}},
		"protobuf message":      {content: wrapperspb.String("hello"), eventType: protoEventType},
	} {
		t.Run(name, func(t *testing.T) {
			w, err := conv.ToWireUncommittedEvent(tc.content, "src-1", tc.eventType, tc.public)
			require.NoError(t, err)
			require.Equal(t, "src-1", w.EventSourceID)
			require.Equal(t, artifacts.ToContract(tc.eventType), w.EventType)

			got, err := conv.FromWire(committedFromUncommitted(w, 7))
			require.NoError(t, err)
			require.Equal(t, events.EventSourceID("src-1"), got.EventSourceID)
			require.Equal(t, tc.eventType, got.EventType)
			require.Equal(t, tc.public, got.Public)
			require.EqualValues(t, 7, got.EventLogSequenceNumber)
			require.Equal(t, 123456789, got.Occurred.Nanosecond())
			require.Nil(t, got.Aggregate)

			if msg, ok := tc.content.(*wrapperspb.StringValue); ok {
				decoded, ok := got.Content.(*wrapperspb.StringValue)
				require.True(t, ok, "content is %T", got.Content)
				require.Equal(t, msg.GetValue(), decoded.GetValue())
				return
			}
			require.Equal(t, tc.want, got.Content)
		})
	}
}

func TestConverter_AggregateEvent(t *testing.T) {
	conv := events.NewConverter(nil, newEventTypes(t))
	w, err := conv.ToWireUncommittedAggregateEvent(AccountOpened{Owner: "bob"}, accountOpenedType, false)
	require.NoError(t, err)
	require.Equal(t, artifacts.ToContract(accountOpenedType), w.EventType)

	root := events.MustEventType("5a0ee8f4-7c7c-4d59-9d8e-2c05b1cfa001", 0)
	committed := committedFromUncommitted(&contracts.UncommittedEvent{
		EventSourceID: "acc-1",
		EventType:     w.EventType,
		Content:       w.Content,
	}, 0)
	committed.Aggregate = &contracts.AggregateLinkage{
		WasAppliedByAggregate: true,
		AggregateRootID:       artifacts.ToContract(root),
		AggregateRootVersion:  4,
	}

	agg, err := conv.FromWireAggregate(&contracts.CommittedAggregateEvents{
		AggregateRootID: artifacts.ToContract(root),
		EventSourceID:   "acc-1",
		Events:          []contracts.CommittedEvent{*committed},
	})
	require.NoError(t, err)
	require.Equal(t, root, agg.AggregateRoot)
	require.Equal(t, events.EventSourceID("acc-1"), agg.EventSourceID)
	require.Equal(t, 1, agg.Len())
	require.EqualValues(t, 4, agg.AggregateRootVersion())
	require.Equal(t, AccountOpened{Owner: "bob"}, agg.At(0).Content)
	require.True(t, agg.At(0).Aggregate.WasAppliedByAggregate)
}

func TestConverter_Errors(t *testing.T) {
	conv := events.NewConverter(nil, newEventTypes(t))

	_, err := conv.ToWireUncommittedEvent(make(chan int), "src-1", selfType, false)
	require.ErrorIs(t, err, events.ErrConversion)

	_, err = conv.FromWire(nil)
	require.ErrorIs(t, err, events.ErrConversion)

	w, err := conv.ToWireUncommittedEvent(AccountOpened{}, "src-1", accountOpenedType, false)
	require.NoError(t, err)

	noContext := committedFromUncommitted(w, 0)
	noContext.ExecutionContext = nil
	_, err = conv.FromWire(noContext)
	require.ErrorIs(t, err, events.ErrMissingExecutionContext)

	emptyContext := committedFromUncommitted(w, 0)
	emptyContext.ExecutionContext = &contracts.ExecutionContext{}
	_, err = conv.FromWire(emptyContext)
	require.ErrorIs(t, err, events.ErrMissingExecutionContext)

	noType := committedFromUncommitted(w, 0)
	noType.EventType = nil
	_, err = conv.FromWire(noType)
	require.ErrorIs(t, err, events.ErrConversion)
	require.ErrorIs(t, err, artifacts.ErrMissingIdentifier)

	badContent := committedFromUncommitted(w, 0)
	badContent.Content = []byte(`{"owner": 12}`)
	_, err = conv.FromWire(badContent)
	require.ErrorIs(t, err, events.ErrConversion)
}

func TestCommittedAggregateEvents_Empty(t *testing.T) {
	require.Equal(t, events.InitialAggregateRootVersion, events.EmptyCommittedAggregateEvents.AggregateRootVersion())
	require.Equal(t, events.EventSourceIDNotSet, events.EmptyCommittedAggregateEvents.EventSourceID)
	require.True(t, events.EmptyCommittedAggregateEvents.IsEmpty())
	require.Equal(t, 0, events.EmptyCommittedEvents.Len())
}

func TestCommittedEvents_Restartable(t *testing.T) {
	c := events.NewCommittedEvents(
		events.CommittedEvent{EventLogSequenceNumber: 0},
		events.CommittedEvent{EventLogSequenceNumber: 1},
		events.CommittedEvent{EventLogSequenceNumber: 2},
	)
	for range 2 {
		var seen []events.EventLogSequenceNumber
		for _, e := range c.All() {
			seen = append(seen, e.EventLogSequenceNumber)
		}
		require.Equal(t, []events.EventLogSequenceNumber{0, 1, 2}, seen)
	}

	// early stop
	for i := range c.All() {
		require.Equal(t, 0, i)
		break
	}

	s := c.Slice()
	s[0].EventLogSequenceNumber = 99
	require.EqualValues(t, 0, c.At(0).EventLogSequenceNumber)
}
