package rpc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MemoryChannel connects a client directly to a Mux in the same process.
// Handler errors cross the channel as message text only, the way they would
// over a network.
type MemoryChannel struct {
	mux    *Mux
	log    *slog.Logger
	closed atomic.Bool

	mu      sync.Mutex
	streams map[*pipeEnd]context.CancelFunc
}

func NewMemoryChannel(mux *Mux) *MemoryChannel {
	return &MemoryChannel{
		mux:     mux,
		log:     slog.New(slog.DiscardHandler),
		streams: make(map[*pipeEnd]context.CancelFunc),
	}
}

func (c *MemoryChannel) WithLog(log *slog.Logger) *MemoryChannel {
	c.log = log.With(slog.String("channel", "mem"))
	return c
}

func (c *MemoryChannel) Call(ctx context.Context, method string, req []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := c.mux.Unary(method)
	if !ok {
		return nil, ErrUnknownMethod
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	in := append([]byte(nil), req...)
	go func() {
		data, err := h(ctx, in)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.err != nil {
			c.log.Debug("call failed", slog.String("method", method), slog.Any("error", r.err))
			return nil, RemoteError(r.err.Error())
		}
		return append([]byte(nil), r.data...), nil
	}
}

func (c *MemoryChannel) Connect(ctx context.Context, method string) (Stream, error) {
	if c.closed.Load() {
		return nil, ErrChannelClosed
	}
	h, ok := c.mux.Stream(method)
	if !ok {
		return nil, ErrUnknownMethod
	}

	sctx, cancel := context.WithCancel(ctx)
	client, server := newPipe(sctx, cancel)

	c.mu.Lock()
	c.streams[client] = cancel
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.streams, client)
			c.mu.Unlock()
		}()
		err := h(sctx, server)
		if err != nil && !IsCanceled(err) {
			c.log.Debug("stream handler failed", slog.String("method", method), slog.Any("error", err))
			server.finish(RemoteError(err.Error()))
			return
		}
		server.finish(io.EOF)
	}()

	return client, nil
}

// Close cancels every open stream. Calls in flight are not interrupted.
func (c *MemoryChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for s, cancel := range c.streams {
		cancel()
		delete(c.streams, s)
	}
	return nil
}

// pipeEnd is one side of an in-memory stream.
type pipeEnd struct {
	ctx    context.Context
	cancel context.CancelFunc
	recv   chan []byte
	peer   *pipeEnd

	once sync.Once
	done chan struct{}
	err  error // set before done is closed
}

func newPipe(ctx context.Context, cancel context.CancelFunc) (client, server *pipeEnd) {
	client = &pipeEnd{ctx: ctx, cancel: cancel, recv: make(chan []byte, 16), done: make(chan struct{})}
	server = &pipeEnd{ctx: ctx, recv: make(chan []byte, 16), done: make(chan struct{})}
	client.peer, server.peer = server, client
	return client, server
}

func (p *pipeEnd) Send(frame []byte) error {
	select {
	case <-p.done:
		return ErrStreamClosed
	case <-p.peer.done:
		return ErrStreamClosed
	default:
	}
	msg := append([]byte(nil), frame...)
	select {
	case p.peer.recv <- msg:
		return nil
	case <-p.peer.done:
		return ErrStreamClosed
	case <-p.done:
		return ErrStreamClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *pipeEnd) Recv() ([]byte, error) {
	select {
	case msg := <-p.recv:
		return msg, nil
	case <-p.peer.done:
		// frames sent before the peer finished are still delivered
		select {
		case msg := <-p.recv:
			return msg, nil
		default:
			return nil, p.peer.err
		}
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	}
}

// Close ends the stream. The client side also cancels the stream context,
// which stops the serving handler.
func (p *pipeEnd) Close() error {
	p.finish(io.EOF)
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *pipeEnd) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
