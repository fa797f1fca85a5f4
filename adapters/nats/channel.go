package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/esclient-go/core/rpc"
)

const defaultSubjectPrefix = "esclient"

type ChannelConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix of the runtime, e.g. "esclient" -> esclient.call
}

// Channel is an rpc.Channel to a runtime served by a Server on the same
// subject prefix.
type Channel struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string

	mu      sync.Mutex
	streams map[*stream]struct{}

	closed atomic.Bool
}

// responseFrame is the reply to a unary call.
type responseFrame struct {
	Data []byte `json:"data,omitempty"`
	Err  string `json:"err,omitempty"`
	Code string `json:"code,omitempty"`
}

func NewChannel(cfg ChannelConfig) (*Channel, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	return &Channel{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("channel", "nats"), slog.String("prefix", prefix)),
		prefix:  prefix,
		streams: make(map[*stream]struct{}),
	}, nil
}

func (c *Channel) Call(ctx context.Context, method string, req []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, rpc.ErrChannelClosed
	}

	msg := natsgo.NewMsg(subjectCall(c.prefix))
	msg.Header.Set(headerMethod, method)
	msg.Data = req

	res, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, requestError(ctx, err)
	}

	var rf responseFrame
	if err := json.Unmarshal(res.Data, &rf); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", rpc.ErrMalformedMessage, err)
	}
	switch {
	case rf.Code == codeUnknownMethod:
		return nil, rpc.ErrUnknownMethod
	case rf.Err != "":
		c.log.Debug("call failed", slog.String("method", method), slog.String("error", rf.Err))
		return nil, rpc.RemoteError(rf.Err)
	}
	return rf.Data, nil
}

func (c *Channel) Connect(ctx context.Context, method string) (rpc.Stream, error) {
	if c.closed.Load() {
		return nil, rpc.ErrChannelClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	s, err := newStream(sctx, cancel, c.nc, subjectStream(c.prefix))
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe inbox: %w", err)
	}

	open := natsgo.NewMsg(subjectConnect(c.prefix))
	open.Header.Set(headerMethod, method)
	open.Header.Set(headerInbox, s.inbox)

	res, err := c.nc.RequestMsgWithContext(ctx, open)
	if err != nil {
		s.end(nil)
		return nil, requestError(ctx, err)
	}
	switch {
	case res.Header.Get(headerCode) == codeUnknownMethod:
		s.end(nil)
		return nil, rpc.ErrUnknownMethod
	case res.Header.Get(headerError) != "":
		s.end(nil)
		return nil, rpc.RemoteError(res.Header.Get(headerError))
	case res.Header.Get(headerInbox) == "":
		s.end(nil)
		return nil, fmt.Errorf("%w: connect reply without inbox", rpc.ErrMalformedMessage)
	}
	s.peer = res.Header.Get(headerInbox)

	s.onClose = func() {
		c.mu.Lock()
		delete(c.streams, s)
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.streams[s] = struct{}{}
	c.mu.Unlock()
	context.AfterFunc(sctx, func() { s.end(nil) })

	c.log.Debug("stream opened", slog.String("method", method), slog.String("inbox", s.inbox))
	return s, nil
}

// Close ends every open stream and releases the connection.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	open := make([]*stream, 0, len(c.streams))
	for s := range c.streams {
		open = append(open, s)
	}
	c.mu.Unlock()
	for _, s := range open {
		s.end(nil)
	}

	if err := c.nc.Flush(); err != nil {
		c.log.Debug("flush on close failed", slog.Any("error", err))
	}
	c.closeNc()
	return nil
}

func requestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, natsgo.ErrNoResponders):
		return rpc.RemoteError("no runtime is serving")
	case errors.Is(err, natsgo.ErrConnectionClosed):
		return rpc.ErrChannelClosed
	}
	return fmt.Errorf("nats: request: %w", err)
}

func subjectCall(prefix string) string    { return prefix + ".call" }
func subjectConnect(prefix string) string { return prefix + ".connect" }
func subjectStream(prefix string) string  { return prefix + "._stream." + gonanoid.Must() }

var _ rpc.Channel = (*Channel)(nil)
