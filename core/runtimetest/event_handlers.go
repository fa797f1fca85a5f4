package runtimetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/rpc"
)

const defaultPartition = "00000000-0000-0000-0000-000000000000"

type handlerSession struct {
	reg       *contracts.EventHandlerRegistrationRequest
	types     map[uuid.UUID]map[uint32]bool
	positions map[uuid.UUID]int
	stream    rpc.Stream
	log       *slog.Logger
	requests  int
}

func (h *handlerSession) handles(e *contracts.CommittedEvent) bool {
	if e.EventType == nil {
		return false
	}
	return h.types[e.EventType.ID][e.EventType.Generation]
}

func (r *Runtime) serveEventHandler(ctx context.Context, s rpc.Stream) error {
	reg, err := rpc.Recv[contracts.EventHandlerRegistrationRequest](s)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, f := tenantOf(reg.CallContext); f != nil {
		return rpc.Send(s, &contracts.EventHandlerRegistrationResponse{Failure: f})
	}
	if reg.HandlerID == uuid.Nil {
		return rpc.Send(s, &contracts.EventHandlerRegistrationResponse{
			Failure: failure(contracts.FailureInvalidRequest, "event handler id is required"),
		})
	}

	r.mu.Lock()
	if _, exists := r.handlers[reg.HandlerID]; exists {
		r.mu.Unlock()
		return rpc.Send(s, &contracts.EventHandlerRegistrationResponse{
			Failure: failure(contracts.FailureEventHandlerAlreadyRegistered, fmt.Sprintf("event handler %s is already registered", reg.HandlerID)),
		})
	}
	r.handlers[reg.HandlerID] = struct{}{}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.handlers, reg.HandlerID)
		r.mu.Unlock()
	}()

	if err := rpc.Send(s, &contracts.EventHandlerRegistrationResponse{}); err != nil {
		return err
	}

	h := &handlerSession{
		reg:       reg,
		types:     make(map[uuid.UUID]map[uint32]bool),
		positions: make(map[uuid.UUID]int),
		stream:    s,
		log:       r.log.With(slog.String("handler", reg.HandlerID.String())),
	}
	for _, t := range reg.Types {
		if h.types[t.ID] == nil {
			h.types[t.ID] = make(map[uint32]bool)
		}
		h.types[t.ID][t.Generation] = true
	}
	h.log.Debug("event handler registered", slog.Int("types", len(reg.Types)))

	for {
		pending, changed := r.pending(h)
		for _, p := range pending {
			if err := r.deliver(ctx, h, p.tenant, p.event); err != nil {
				return err
			}
		}
		if len(pending) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

type pendingEvent struct {
	tenant uuid.UUID
	event  contracts.CommittedEvent
}

// pending collects the events h has not seen yet and advances its
// positions. Only the default scope holds committed events.
func (r *Runtime) pending(h *handlerSession) ([]pendingEvent, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []pendingEvent
	for _, tenant := range r.tenantOrder {
		l := r.tenants[tenant]
		pos := h.positions[tenant]
		if h.reg.ScopeID == uuid.Nil {
			for _, e := range l.events[pos:] {
				if h.handles(&e) {
					out = append(out, pendingEvent{tenant: tenant, event: e})
				}
			}
		}
		h.positions[tenant] = len(l.events)
	}
	return out, r.changed
}

// deliver sends e and waits for its response, retrying while the handler
// asks for it.
func (r *Runtime) deliver(ctx context.Context, h *handlerSession, tenant uuid.UUID, e contracts.CommittedEvent) error {
	partition := defaultPartition
	if h.reg.Partitioned {
		partition = e.EventSourceID
	}
	for retry := uint32(0); ; retry++ {
		h.requests++
		req := &contracts.HandleEventRequest{
			RequestID:   strconv.Itoa(h.requests),
			Event:       &e,
			PartitionID: partition,
			RetryCount:  retry,
		}
		if err := rpc.Send(h.stream, req); err != nil {
			return err
		}
		res, err := rpc.Recv[contracts.HandleEventResponse](h.stream)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if res.RequestID != req.RequestID {
			return fmt.Errorf("response to request %q, expected %q", res.RequestID, req.RequestID)
		}

		r.mu.Lock()
		if res.Failure == nil {
			r.processed[h.reg.HandlerID]++
			r.mu.Unlock()
			return nil
		}
		r.failures = append(r.failures, HandlerFailure{
			HandlerID:      h.reg.HandlerID,
			Tenant:         tenant,
			SequenceNumber: e.EventLogSequenceNumber,
			Reason:         res.Failure.Reason,
			Retry:          res.Failure.Retry,
			RetryCount:     retry,
		})
		r.mu.Unlock()

		h.log.Debug("event handler failed",
			slog.Uint64("sequence_number", e.EventLogSequenceNumber),
			slog.String("reason", res.Failure.Reason),
			slog.Bool("retry", res.Failure.Retry),
		)
		if !res.Failure.Retry {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}
