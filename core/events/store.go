package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/rpc"
)

// EventStore commits events to the runtime. Each commit resolves event
// types, sends exactly one request (unless a retry policy is configured)
// and converts the response. It is safe for concurrent use.
type EventStore struct {
	ch             rpc.Channel
	conv           *Converter
	eventTypes     *EventTypes
	aggregateRoots *AggregateRootTypes
	provider       execution.Provider
	retry          rpc.RetryPolicy
	log            *slog.Logger
	metrics        Metrics
}

func NewEventStore(
	ch rpc.Channel,
	eventTypes *EventTypes,
	aggregateRoots *AggregateRootTypes,
	provider execution.Provider,
	opts ...StoreOption,
) *EventStore {
	options := storeOptions{
		log:     slog.Default(),
		metrics: NopMetrics(),
		retry:   rpc.NoRetry(),
	}
	for _, opt := range opts {
		opt.applyToStore(&options)
	}
	if eventTypes == nil {
		eventTypes = NewEventTypes()
	}
	if aggregateRoots == nil {
		aggregateRoots = NewAggregateRootTypes()
	}
	if provider == nil {
		provider = execution.Static(execution.New(uuid.Nil, execution.Version{}, ""))
	}
	return &EventStore{
		ch:             ch,
		conv:           NewConverter(options.codec, eventTypes),
		eventTypes:     eventTypes,
		aggregateRoots: aggregateRoots,
		provider:       provider,
		retry:          options.retry,
		log:            options.log.With(slog.String("component", "event_store")),
		metrics:        options.metrics,
	}
}

// ForTenant returns a store acting for tenant. Every call gets a new
// correlation id.
func (s *EventStore) ForTenant(tenant uuid.UUID) *EventStore {
	base := s.provider
	out := *s
	out.provider = execution.ProviderFunc(func() execution.ExecutionContext {
		return base.Current().ForTenant(tenant)
	})
	out.log = s.log.With(slog.String("tenant", tenant.String()))
	return &out
}

func (s *EventStore) Converter() *Converter { return s.conv }

// Commit dispatches on the shape of c.
func (s *EventStore) Commit(ctx context.Context, c Commit) (*CommitEventsResponse, error) {
	switch c := c.(type) {
	case Event:
		return s.commit(ctx, []UncommittedEvent{{
			Content:       c.Content,
			EventSourceID: c.EventSourceID,
			EventType:     c.EventType,
		}})
	case PublicEvent:
		return s.commit(ctx, []UncommittedEvent{{
			Content:       c.Content,
			EventSourceID: c.EventSourceID,
			EventType:     c.EventType,
			Public:        true,
		}})
	case Events:
		return s.commit(ctx, c)
	case AggregateEvent:
		return s.commitAggregate(ctx, c.batch())
	case AggregateEvents:
		return s.commitAggregate(ctx, UncommittedAggregateEvents(c))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommit, c)
	}
}

func (s *EventStore) CommitEvent(ctx context.Context, content any, source EventSourceID, opts ...CommitOption) (*CommitEventsResponse, error) {
	o := applyCommitOptions(opts)
	return s.Commit(ctx, Event{Content: content, EventSourceID: source, EventType: o.eventType})
}

func (s *EventStore) CommitPublicEvent(ctx context.Context, content any, source EventSourceID, opts ...CommitOption) (*CommitEventsResponse, error) {
	o := applyCommitOptions(opts)
	return s.Commit(ctx, PublicEvent{Content: content, EventSourceID: source, EventType: o.eventType})
}

func (s *EventStore) CommitEvents(ctx context.Context, events ...UncommittedEvent) (*CommitEventsResponse, error) {
	return s.Commit(ctx, Events(events))
}

// CommitForAggregate commits content as applied by the aggregate root
// associated with rootKind, expecting the stored version to be expected.
func (s *EventStore) CommitForAggregate(
	ctx context.Context,
	content any,
	source EventSourceID,
	rootKind reflect.Type,
	expected AggregateRootVersion,
	opts ...CommitOption,
) (*CommitEventsResponse, error) {
	o := applyCommitOptions(opts)
	return s.Commit(ctx, AggregateEvent{
		Content:                      content,
		EventSourceID:                source,
		EventType:                    o.eventType,
		AggregateRoot:                o.aggregateRoot,
		AggregateRootKind:            rootKind,
		ExpectedAggregateRootVersion: expected,
	})
}

func (s *EventStore) CommitAggregateEvents(ctx context.Context, events UncommittedAggregateEvents) (*CommitEventsResponse, error) {
	return s.Commit(ctx, AggregateEvents(events))
}

// FetchForAggregate returns the events root applied to source. A runtime
// rejection is returned as a Failure error.
func (s *EventStore) FetchForAggregate(ctx context.Context, root AggregateRootType, source EventSourceID) (CommittedAggregateEvents, error) {
	defer s.metrics.CommitDuration(KindFetch).ObserveDuration()

	if root.IsZero() {
		return CommittedAggregateEvents{}, fmt.Errorf("fetch: %w", artifacts.ErrMissingIdentifier)
	}
	if source.IsZero() {
		return CommittedAggregateEvents{}, fmt.Errorf("fetch: %w", ErrEventSourceIDEmpty)
	}

	req := &contracts.FetchForAggregateRequest{
		CallContext:     execution.CallContext(s.provider.Current()),
		AggregateRootID: artifacts.ToContract(root),
		EventSourceID:   string(source),
	}
	var res *contracts.FetchForAggregateResponse
	err := s.retry.Do(ctx, func(ctx context.Context) (err error) {
		res, err = rpc.Unary[contracts.FetchForAggregateRequest, contracts.FetchForAggregateResponse](ctx, s.ch, contracts.MethodFetchForAggregate, req)
		return err
	})
	if err != nil {
		s.metrics.CommitFailed(KindFetch, "error")
		return CommittedAggregateEvents{}, fmt.Errorf("fetch: %w", err)
	}
	if f := failureFromContract(res.Failure); f != nil {
		s.metrics.CommitFailed(KindFetch, "rejected")
		return CommittedAggregateEvents{}, *f
	}
	if res.Events == nil {
		return NewCommittedAggregateEvents(source, root), nil
	}
	return s.conv.FromWireAggregate(res.Events)
}

func (s *EventStore) commit(ctx context.Context, events []UncommittedEvent) (*CommitEventsResponse, error) {
	defer s.metrics.CommitDuration(KindEvents).ObserveDuration()

	req := &contracts.CommitEventsRequest{
		CallContext: execution.CallContext(s.provider.Current()),
		Events:      make([]contracts.UncommittedEvent, 0, len(events)),
	}
	for i, e := range events {
		if e.EventSourceID.IsZero() {
			s.metrics.CommitFailed(KindEvents, "error")
			return nil, fmt.Errorf("commit: event %d: %w", i, ErrEventSourceIDEmpty)
		}
		et, err := s.eventTypes.ResolveFrom(e.Content, e.EventType)
		if err != nil {
			s.metrics.CommitFailed(KindEvents, "error")
			return nil, fmt.Errorf("commit: event %d: %w", i, err)
		}
		w, err := s.conv.ToWireUncommittedEvent(e.Content, e.EventSourceID, et, e.Public)
		if err != nil {
			s.metrics.CommitFailed(KindEvents, "error")
			return nil, fmt.Errorf("commit: event %d: %w", i, err)
		}
		req.Events = append(req.Events, *w)
	}

	var res *contracts.CommitEventsResponse
	err := s.retry.Do(ctx, func(ctx context.Context) (err error) {
		res, err = rpc.Unary[contracts.CommitEventsRequest, contracts.CommitEventsResponse](ctx, s.ch, contracts.MethodCommit, req)
		return err
	})
	if err != nil {
		s.metrics.CommitFailed(KindEvents, "error")
		return nil, fmt.Errorf("commit: %w", err)
	}

	if f := failureFromContract(res.Failure); f != nil {
		s.metrics.CommitFailed(KindEvents, "rejected")
		s.log.Debug("commit rejected", f.SlogAttr(), slog.Int("events", len(events)))
		return failedResponse(f), nil
	}

	committed, err := s.conv.fromWireEvents(res.Events)
	if err != nil {
		s.metrics.CommitFailed(KindEvents, "error")
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.metrics.EventsCommitted(KindEvents, committed.Len())
	s.log.Debug("committed", slog.Int("events", committed.Len()))
	return &CommitEventsResponse{Events: committed}, nil
}

func (s *EventStore) commitAggregate(ctx context.Context, u UncommittedAggregateEvents) (*CommitEventsResponse, error) {
	defer s.metrics.CommitDuration(KindAggregate).ObserveDuration()

	fail := func(err error) (*CommitEventsResponse, error) {
		s.metrics.CommitFailed(KindAggregate, "error")
		return nil, fmt.Errorf("commit for aggregate: %w", err)
	}

	root, err := s.aggregateRoots.ResolveFrom(u.AggregateRootKind, u.AggregateRoot)
	if err != nil {
		return fail(err)
	}
	if u.EventSourceID.IsZero() {
		return fail(ErrEventSourceIDEmpty)
	}

	req := &contracts.CommitAggregateEventsRequest{
		CallContext: execution.CallContext(s.provider.Current()),
		Events: contracts.UncommittedAggregateEvents{
			AggregateRootID:              artifacts.ToContract(root),
			EventSourceID:                string(u.EventSourceID),
			ExpectedAggregateRootVersion: uint64(u.ExpectedAggregateRootVersion),
			Events:                       make([]contracts.UncommittedAggregateEvent, 0, len(u.Events)),
		},
	}
	for i, e := range u.Events {
		et, err := s.eventTypes.ResolveFrom(e.Content, e.EventType)
		if err != nil {
			return fail(fmt.Errorf("event %d: %w", i, err))
		}
		w, err := s.conv.ToWireUncommittedAggregateEvent(e.Content, et, e.Public)
		if err != nil {
			return fail(fmt.Errorf("event %d: %w", i, err))
		}
		req.Events.Events = append(req.Events.Events, *w)
	}

	var res *contracts.CommitAggregateEventsResponse
	err = s.retry.Do(ctx, func(ctx context.Context) (err error) {
		res, err = rpc.Unary[contracts.CommitAggregateEventsRequest, contracts.CommitAggregateEventsResponse](ctx, s.ch, contracts.MethodCommitForAggregate, req)
		return err
	})
	if err != nil {
		return fail(err)
	}

	log := s.log.With(root.SlogAttrWithKey("aggregate_root"), u.EventSourceID.SlogAttr())
	if f := failureFromContract(res.Failure); f != nil {
		s.metrics.CommitFailed(KindAggregate, "rejected")
		if f.IsConcurrencyConflict() {
			s.metrics.ConcurrencyConflict(root.ID.String())
		}
		log.Debug("aggregate commit rejected", f.SlogAttr(), u.ExpectedAggregateRootVersion.SlogAttrWithKey("expected_version"))
		return failedResponse(f), nil
	}

	agg := NewCommittedAggregateEvents(u.EventSourceID, root)
	if res.Events != nil {
		agg, err = s.conv.FromWireAggregate(res.Events)
		if err != nil {
			return fail(err)
		}
	}
	s.metrics.EventsCommitted(KindAggregate, agg.Len())
	log.Debug("committed for aggregate", slog.Int("events", agg.Len()), agg.AggregateRootVersion().SlogAttr())
	return &CommitEventsResponse{Events: agg.Events(), aggregate: &agg}, nil
}

func applyCommitOptions(opts []CommitOption) commitOptions {
	var o commitOptions
	for _, opt := range opts {
		opt.applyToCommit(&o)
	}
	return o
}

// IsConcurrencyConflict reports whether err or res describes an aggregate
// version conflict.
func IsConcurrencyConflict(res *CommitEventsResponse, err error) bool {
	if err != nil {
		var f Failure
		return errors.As(err, &f) && f.IsConcurrencyConflict()
	}
	return res != nil && res.Failure != nil && res.Failure.IsConcurrencyConflict()
}
