package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/codewandler/esclient-go/core/rpc"
)

type ChannelConfig struct {
	Address     string              // Address of the runtime, host:port
	Log         *slog.Logger        // Log for diagnostics (optional)
	DialOptions []grpcgo.DialOption // DialOptions are appended to the defaults, plaintext if none set credentials
}

// Channel is an rpc.Channel over a gRPC client connection. Methods are sent
// as full gRPC method names with raw frames as messages.
type Channel struct {
	conn   *grpcgo.ClientConn
	log    *slog.Logger
	closed atomic.Bool
}

var streamDesc = &grpcgo.StreamDesc{ClientStreams: true, ServerStreams: true}

func Dial(ctx context.Context, cfg ChannelConfig) (*Channel, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	opts := append([]grpcgo.DialOption{
		grpcgo.WithTransportCredentials(insecure.NewCredentials()),
		grpcgo.WithDefaultCallOptions(grpcgo.ForceCodec(rawCodec{})),
	}, cfg.DialOptions...)

	conn, err := grpcgo.DialContext(ctx, cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", cfg.Address, err)
	}
	return &Channel{
		conn: conn,
		log:  log.With(slog.String("channel", "grpc"), slog.String("address", cfg.Address)),
	}, nil
}

func (c *Channel) Call(ctx context.Context, method string, req []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, rpc.ErrChannelClosed
	}
	var res frame
	if err := c.conn.Invoke(ctx, method, &frame{data: req}, &res); err != nil {
		err = fromStatus(ctx, err)
		c.log.Debug("call failed", slog.String("method", method), slog.Any("error", err))
		return nil, err
	}
	return res.data, nil
}

func (c *Channel) Connect(ctx context.Context, method string) (rpc.Stream, error) {
	if c.closed.Load() {
		return nil, rpc.ErrChannelClosed
	}
	sctx, cancel := context.WithCancel(ctx)
	cs, err := c.conn.NewStream(sctx, streamDesc, method)
	if err != nil {
		cancel()
		return nil, fromStatus(ctx, err)
	}
	return &clientStream{cs: cs, ctx: sctx, cancel: cancel}, nil
}

func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// clientStream cancels the gRPC stream on Close, which ends the handler on
// the serving side.
type clientStream struct {
	cs     grpcgo.ClientStream
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func (s *clientStream) Send(data []byte) error {
	if s.closed.Load() {
		return rpc.ErrStreamClosed
	}
	if err := s.cs.SendMsg(&frame{data: data}); err != nil {
		// SendMsg reports io.EOF when the server ended the stream; the
		// actual outcome is left for Recv
		if errors.Is(err, io.EOF) {
			return rpc.ErrStreamClosed
		}
		return fromStatus(s.ctx, err)
	}
	return nil
}

func (s *clientStream) Recv() ([]byte, error) {
	if s.closed.Load() {
		return nil, rpc.ErrStreamClosed
	}
	var f frame
	if err := s.cs.RecvMsg(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if s.closed.Load() {
			return nil, rpc.ErrStreamClosed
		}
		return nil, fromStatus(s.ctx, err)
	}
	return f.data, nil
}

func (s *clientStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_ = s.cs.CloseSend()
	s.cancel()
	return nil
}

// fromStatus maps a gRPC status to the rpc errors.
func fromStatus(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("grpc: %w", err)
	}
	switch st.Code() {
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", rpc.ErrUnknownMethod, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", rpc.ErrMalformedMessage, st.Message())
	default:
		return rpc.RemoteError(st.Message())
	}
}

var _ rpc.Channel = (*Channel)(nil)
