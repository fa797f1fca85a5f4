package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/codewandler/esclient-go/core/client"
	"github.com/codewandler/esclient-go/core/events"
	"github.com/codewandler/esclient-go/core/handling"
	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/core/runtimetest"
)

var discard = slog.New(slog.DiscardHandler)

const (
	methodEcho   = "/esclient.test.Echo/Unary"
	methodStream = "/esclient.test.Echo/Stream"
)

type (
	echoReq struct{ Text string }
	echoRes struct{ Text string }
)

func newEchoMux(stopped chan<- struct{}) *rpc.Mux {
	mux := rpc.NewMux()
	rpc.HandleUnary(mux, methodEcho, func(_ context.Context, req *echoReq) (*echoRes, error) {
		if req.Text == "fail" {
			return nil, errors.New("boom")
		}
		return &echoRes{Text: req.Text}, nil
	})
	rpc.HandleStream(mux, methodStream, func(ctx context.Context, s rpc.Stream) error {
		defer func() {
			if stopped != nil {
				stopped <- struct{}{}
			}
		}()
		for {
			msg, err := rpc.Recv[echoReq](s)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if msg.Text == "fail" {
				return errors.New("stream boom")
			}
			if err := rpc.Send(s, &echoRes{Text: msg.Text}); err != nil {
				return err
			}
		}
	})
	return mux
}

// serve serves mux on an in-memory listener and returns a channel to it.
func serve(t *testing.T, mux *rpc.Mux) *Channel {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(mux, ServerConfig{Log: discard})
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, lis) }()

	ch, err := Dial(t.Context(), ChannelConfig{
		Address: "bufnet",
		Log:     discard,
		DialOptions: []grpcgo.DialOption{
			grpcgo.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, ch.Close())
		cancel()
		require.NoError(t, <-served)
	})
	return ch
}

func TestChannel_Unary(t *testing.T) {
	ch := serve(t, newEchoMux(nil))

	res, err := rpc.Unary[echoReq, echoRes](t.Context(), ch, methodEcho, &echoReq{Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Text)

	_, err = rpc.Unary[echoReq, echoRes](t.Context(), ch, methodEcho, &echoReq{Text: "fail"})
	require.ErrorIs(t, err, rpc.ErrRemote)
	require.ErrorContains(t, err, "boom")

	_, err = ch.Call(t.Context(), "/esclient.test.Echo/Nope", []byte(`{}`))
	require.ErrorIs(t, err, rpc.ErrUnknownMethod)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = ch.Call(ctx, methodEcho, []byte(`{}`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestChannel_Closed(t *testing.T) {
	ch := serve(t, newEchoMux(nil))
	require.NoError(t, ch.Close())

	_, err := ch.Call(t.Context(), methodEcho, nil)
	require.ErrorIs(t, err, rpc.ErrChannelClosed)
	_, err = ch.Connect(t.Context(), methodStream)
	require.ErrorIs(t, err, rpc.ErrChannelClosed)
}

func TestChannel_Stream(t *testing.T) {
	stopped := make(chan struct{}, 1)
	ch := serve(t, newEchoMux(stopped))

	s, err := ch.Connect(t.Context(), methodStream)
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, rpc.Send(s, &echoReq{Text: text}))
		res, err := rpc.Recv[echoRes](s)
		require.NoError(t, err)
		require.Equal(t, text, res.Text)
	}

	require.NoError(t, s.Close())
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("handler still running after the client closed the stream")
	}
	require.ErrorIs(t, s.Send([]byte(`{}`)), rpc.ErrStreamClosed)
	_, err = s.Recv()
	require.ErrorIs(t, err, rpc.ErrStreamClosed)
}

func TestChannel_StreamHandlerError(t *testing.T) {
	ch := serve(t, newEchoMux(nil))

	s, err := ch.Connect(t.Context(), methodStream)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, rpc.Send(s, &echoReq{Text: "ok"}))
	res, err := rpc.Recv[echoRes](s)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Text)

	require.NoError(t, rpc.Send(s, &echoReq{Text: "fail"}))
	_, err = s.Recv()
	require.ErrorIs(t, err, rpc.ErrRemote)
	require.ErrorContains(t, err, "stream boom")
}

func TestChannel_UnknownStream(t *testing.T) {
	ch := serve(t, newEchoMux(nil))

	// gRPC opens streams lazily, the outcome arrives with the first Recv
	s, err := ch.Connect(t.Context(), "/esclient.test.Echo/Nope")
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Recv()
	require.ErrorIs(t, err, rpc.ErrUnknownMethod)
}

type ParcelDelivered struct {
	Parcel string `json:"parcel"`
}

var (
	parcelDeliveredType = events.MustEventType("2f6e8d1c-3b4a-4c5d-9e6f-7a8b9c0d1e01", 0)
	deliveryHandler     = uuid.MustParse("2f6e8d1c-3b4a-4c5d-9e6f-7a8b9c0d1e02")
)

func TestChannel_Runtime(t *testing.T) {
	rt := runtimetest.New(runtimetest.WithLog(discard), runtimetest.WithRetryDelay(time.Millisecond))
	ch := serve(t, rt.Mux())

	var delivered atomic.Int32
	c, err := client.Run(client.Config{
		Log:     discard,
		Channel: ch,
		EventTypes: func(r *events.EventTypes) error {
			return events.AssociateEventType[ParcelDelivered](r, parcelDeliveredType)
		},
		EventHandlers: func(b *handling.Builder) {
			b.CreateEventHandler(deliveryHandler, func(h *handling.EventHandlerBuilder) {
				handling.Handle(h, func(_ context.Context, e ParcelDelivered, _ events.EventContext) error {
					if e.Parcel == "p-1" {
						delivered.Add(1)
					}
					return nil
				})
			})
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	res, err := c.EventStore().CommitEvent(t.Context(), ParcelDelivered{Parcel: "p-1"}, "parcel-1")
	require.NoError(t, err)
	require.False(t, res.Failed())

	require.Eventually(t, func() bool { return rt.Processed(deliveryHandler) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, delivered.Load())
}
