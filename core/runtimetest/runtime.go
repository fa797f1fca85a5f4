// Package runtimetest provides an in-process runtime for tests and local
// development. It serves the event store, event handler and subscription
// methods on an rpc.Mux.
//
// Each tenant has its own event log numbered from 0. Aggregate commits are
// checked against the version stored per (aggregate root, event source).
// Event handlers first receive the stored events of their types, then live
// ones, one at a time.
package runtimetest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/rpc"
)

type aggregateKey struct {
	root   uuid.UUID
	source string
}

type tenantLog struct {
	events   []contracts.CommittedEvent
	versions map[aggregateKey]uint64
}

// HandlerFailure records a failed HandleEventResponse.
type HandlerFailure struct {
	HandlerID      uuid.UUID
	Tenant         uuid.UUID
	SequenceNumber uint64
	Reason         string
	Retry          bool
	RetryCount     uint32
}

type Runtime struct {
	log        *slog.Logger
	now        func() time.Time
	retryDelay time.Duration
	subscribe  SubscribeFunc
	journal    Journal

	mu            sync.Mutex
	tenants       map[uuid.UUID]*tenantLog
	tenantOrder   []uuid.UUID
	changed       chan struct{}
	handlers      map[uuid.UUID]struct{}
	processed     map[uuid.UUID]int
	failures      []HandlerFailure
	subscriptions []contracts.SubscriptionRequest
}

// SubscribeFunc answers a subscription request.
type SubscribeFunc func(req *contracts.SubscriptionRequest) *contracts.SubscriptionResponse

func New(opts ...Option) *Runtime {
	options := runtimeOptions{
		log:        slog.New(slog.DiscardHandler),
		now:        time.Now,
		retryDelay: 10 * time.Millisecond,
		subscribe: func(*contracts.SubscriptionRequest) *contracts.SubscriptionResponse {
			return &contracts.SubscriptionResponse{ConsentID: uuid.New()}
		},
	}
	for _, opt := range opts {
		opt.applyToRuntime(&options)
	}
	return &Runtime{
		log:        options.log.With(slog.String("component", "runtime")),
		now:        options.now,
		retryDelay: options.retryDelay,
		subscribe:  options.subscribe,
		journal:    options.journal,
		tenants:    make(map[uuid.UUID]*tenantLog),
		changed:    make(chan struct{}),
		handlers:   make(map[uuid.UUID]struct{}),
		processed:  make(map[uuid.UUID]int),
	}
}

// Register installs the runtime methods on m.
func (r *Runtime) Register(m *rpc.Mux) {
	rpc.HandleUnary(m, contracts.MethodCommit, r.commit)
	rpc.HandleUnary(m, contracts.MethodCommitForAggregate, r.commitForAggregate)
	rpc.HandleUnary(m, contracts.MethodFetchForAggregate, r.fetchForAggregate)
	rpc.HandleUnary(m, contracts.MethodSubscribe, r.handleSubscribe)
	rpc.HandleStream(m, contracts.MethodEventHandlers, r.serveEventHandler)
}

// Mux returns a new mux serving the runtime.
func (r *Runtime) Mux() *rpc.Mux {
	m := rpc.NewMux()
	r.Register(m)
	return m
}

// Channel returns an in-memory client channel to the runtime.
func (r *Runtime) Channel() *rpc.MemoryChannel {
	return rpc.NewMemoryChannel(r.Mux()).WithLog(r.log)
}

// SetAggregateVersion overrides the stored version of an aggregate root
// instance, as if events had been committed elsewhere.
func (r *Runtime) SetAggregateVersion(tenant, root uuid.UUID, source string, version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenantLocked(tenant).versions[aggregateKey{root: root, source: source}] = version
}

func (r *Runtime) AggregateVersion(tenant, root uuid.UUID, source string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tenantLocked(tenant).versions[aggregateKey{root: root, source: source}]
}

// Events returns a copy of the event log of tenant.
func (r *Runtime) Events(tenant uuid.UUID) []contracts.CommittedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.tenants[tenant]
	if !ok {
		return nil
	}
	return slices.Clone(l.events)
}

// Processed returns how many events handler acknowledged successfully.
func (r *Runtime) Processed(handler uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[handler]
}

func (r *Runtime) HandlerFailures() []HandlerFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.failures)
}

func (r *Runtime) Subscriptions() []contracts.SubscriptionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.subscriptions)
}

func (r *Runtime) tenantLocked(tenant uuid.UUID) *tenantLog {
	l, ok := r.tenants[tenant]
	if !ok {
		l = &tenantLog{versions: make(map[aggregateKey]uint64)}
		r.tenants[tenant] = l
		r.tenantOrder = append(r.tenantOrder, tenant)
	}
	return l
}

// storeLocked numbers batch, journals it and wakes up event handlers. A
// batch the journal rejected is not stored.
func (r *Runtime) storeLocked(ctx context.Context, tenant uuid.UUID, l *tenantLog, batch []contracts.CommittedEvent) ([]contracts.CommittedEvent, error) {
	for i := range batch {
		batch[i].EventLogSequenceNumber = uint64(len(l.events) + i)
	}
	if r.journal != nil {
		if err := r.journal.Append(ctx, tenant, batch); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	l.events = append(l.events, batch...)
	close(r.changed)
	r.changed = make(chan struct{})
	return batch, nil
}

func failure(id uuid.UUID, reason string) *contracts.Failure {
	return &contracts.Failure{ID: id, Reason: reason}
}

func tenantOf(cc *contracts.CallRequestContext) (*contracts.ExecutionContext, *contracts.Failure) {
	if cc == nil || cc.ExecutionContext == nil {
		return nil, failure(contracts.FailureMissingCallContext, "call context is missing")
	}
	return cc.ExecutionContext, nil
}
