package handling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/execution"
	"github.com/codewandler/esclient-go/core/perkey"
	"github.com/codewandler/esclient-go/core/rpc"
)

// Processor connects one EventHandler to the runtime.
//
// The runtime pushes HandleEventRequests over the stream opened by Register
// and waits for a response to each. Requests are dispatched per partition:
// a partition is handled by one worker at a time and in arrival order.
type Processor struct {
	handler  *EventHandler
	ch       rpc.Channel
	conv     *events.Converter
	provider execution.Provider
	opts     handlersOptions
	log      *slog.Logger
}

// Register registers the handler and processes events until ctx is done or
// the stream fails. It makes a single attempt.
func (p *Processor) Register(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := p.ch.Connect(ctx, contracts.MethodEventHandlers)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer s.Close()

	if err := p.register(s); err != nil {
		p.opts.metrics.Registration(p.handler.id.String(), false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	p.opts.metrics.Registration(p.handler.id.String(), true)
	p.log.Info("event handler registered", slog.Int("event_types", len(p.handler.HandledEvents())))

	return p.process(ctx, cancel, s)
}

// RegisterWithPolicy retries Register according to policy.
func (p *Processor) RegisterWithPolicy(ctx context.Context, policy rpc.RetryPolicy) error {
	if policy == nil {
		policy = rpc.NoRetry()
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		err := p.Register(ctx)
		if err != nil && !rpc.IsCanceled(err) {
			p.log.Warn("event handler disconnected", slog.Any("error", err))
		}
		return err
	})
}

// RegisterForever keeps the handler registered until ctx is done. It
// always returns the context error.
func (p *Processor) RegisterForever(ctx context.Context, policy rpc.RetryPolicy) error {
	if policy == nil {
		policy = rpc.BackoffPolicy{InitialInterval: 100 * time.Millisecond, MaxInterval: 5 * time.Second}
	}
	for {
		err := p.RegisterWithPolicy(ctx, policy)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn("event handler retry policy exhausted", slog.Any("error", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.reconnectDelay):
		}
	}
}

func (p *Processor) register(s rpc.Stream) error {
	req := &contracts.EventHandlerRegistrationRequest{
		CallContext: execution.CallContext(p.provider.Current()),
		HandlerID:   p.handler.id,
		ScopeID:     p.handler.scope.UUID(),
		Partitioned: p.handler.partitioned,
	}
	for _, et := range p.handler.HandledEvents() {
		req.Types = append(req.Types, *artifacts.ToContract(et))
	}
	if err := rpc.Send(s, req); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}
	res, err := rpc.Recv[contracts.EventHandlerRegistrationResponse](s)
	if err != nil {
		return fmt.Errorf("receive registration response: %w", err)
	}
	if f := res.Failure; f != nil {
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, events.Failure{ID: f.ID, Reason: f.Reason})
	}
	return nil
}

func (p *Processor) process(ctx context.Context, cancel context.CancelFunc, s rpc.Stream) error {
	sched := perkey.New[events.PartitionID](perkey.WithIdleTimeout(p.opts.idleTimeout))
	defer sched.Close()
	// queued handlers observe the cancellation before Close waits for them
	defer cancel()

	var sendMu sync.Mutex
	failed := make(chan error, 1)
	reply := func(res *contracts.HandleEventResponse) {
		sendMu.Lock()
		err := rpc.Send(s, res)
		sendMu.Unlock()
		if err != nil {
			select {
			case failed <- fmt.Errorf("send response: %w", err):
				cancel()
			default:
			}
		}
	}

	for {
		req, err := rpc.Recv[contracts.HandleEventRequest](s)
		if err != nil {
			select {
			case sendErr := <-failed:
				return sendErr
			default:
			}
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				return ErrProcessingStopped
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}

		partition := events.PartitionID(req.PartitionID)
		if err := sched.Submit(ctx, partition, func() { reply(p.handle(ctx, req)) }); err != nil {
			return err
		}
	}
}

// handle dispatches one request and never panics.
func (p *Processor) handle(ctx context.Context, req *contracts.HandleEventRequest) (res *contracts.HandleEventResponse) {
	handlerID := p.handler.id.String()
	defer p.opts.metrics.EventDuration(handlerID).ObserveDuration()

	res = &contracts.HandleEventResponse{RequestID: req.RequestID}
	fail := func(err error, retry bool) {
		res.Failure = &contracts.ProcessorFailure{Reason: err.Error(), Retry: retry}
		p.opts.metrics.EventProcessed(handlerID, false)
		p.log.Warn("event handling failed",
			slog.String("partition", req.PartitionID),
			slog.Uint64("retry_count", uint64(req.RetryCount)),
			slog.Any("error", err),
		)
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("event handler panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			fail(fmt.Errorf("panic: %v", r), true)
		}
	}()

	e, err := p.conv.FromWire(req.Event)
	if err != nil {
		fail(err, false)
		return res
	}
	ec := e.Context()
	ec.Partition = events.PartitionID(req.PartitionID)
	ec.RetryCount = req.RetryCount

	if err := p.handler.Handle(ctx, e.Content, e.EventType, ec); err != nil {
		fail(err, !errors.Is(err, ErrMissingEventHandlerForType))
		return res
	}
	p.opts.metrics.EventProcessed(handlerID, true)
	return res
}
