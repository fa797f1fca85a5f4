package rpc_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/esclient-go/core/metrics"
	"github.com/codewandler/esclient-go/core/rpc"
)

type echoReq struct {
	Text string `json:"text"`
}

type echoRes struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func newEchoMux() *rpc.Mux {
	mux := rpc.NewMux()
	rpc.HandleUnary(mux, "/echo", func(ctx context.Context, req *echoReq) (*echoRes, error) {
		if req.Text == "fail" {
			return nil, errors.New("boom")
		}
		return &echoRes{Text: req.Text, Count: len(req.Text)}, nil
	})
	rpc.HandleStream(mux, "/upper", func(ctx context.Context, s rpc.Stream) error {
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
			if err := rpc.Send(s, &echoRes{Text: msg.Text, Count: len(msg.Text)}); err != nil {
				return err
			}
		}
	})
	return mux
}

func TestMemoryChannel_Unary(t *testing.T) {
	ch := rpc.NewMemoryChannel(newEchoMux())
	defer ch.Close()

	res, err := rpc.Unary[echoReq, echoRes](t.Context(), ch, "/echo", &echoReq{Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Text)
	require.Equal(t, 5, res.Count)
}

func TestMemoryChannel_Unary_RemoteError(t *testing.T) {
	ch := rpc.NewMemoryChannel(newEchoMux())
	defer ch.Close()

	_, err := rpc.Unary[echoReq, echoRes](t.Context(), ch, "/echo", &echoReq{Text: "fail"})
	require.ErrorIs(t, err, rpc.ErrRemote)
	require.Contains(t, err.Error(), "boom")
}

func TestMemoryChannel_UnknownMethod(t *testing.T) {
	ch := rpc.NewMemoryChannel(rpc.NewMux())
	defer ch.Close()

	_, err := ch.Call(t.Context(), "/nope", nil)
	require.ErrorIs(t, err, rpc.ErrUnknownMethod)

	_, err = ch.Connect(t.Context(), "/nope")
	require.ErrorIs(t, err, rpc.ErrUnknownMethod)
}

func TestMemoryChannel_Unary_Canceled(t *testing.T) {
	mux := rpc.NewMux()
	mux.Handle("/block", func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ch := rpc.NewMemoryChannel(mux)
	defer ch.Close()

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := ch.Call(ctx, "/block", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryChannel_Closed(t *testing.T) {
	ch := rpc.NewMemoryChannel(newEchoMux())
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	_, err := ch.Call(t.Context(), "/echo", []byte(`{}`))
	require.ErrorIs(t, err, rpc.ErrChannelClosed)
}

func TestMemoryChannel_Stream(t *testing.T) {
	ch := rpc.NewMemoryChannel(newEchoMux())
	defer ch.Close()

	s, err := ch.Connect(t.Context(), "/upper")
	require.NoError(t, err)
	defer s.Close()

	for _, text := range []string{"a", "bb", "ccc"} {
		require.NoError(t, rpc.Send(s, &echoReq{Text: text}))
		res, err := rpc.Recv[echoRes](s)
		require.NoError(t, err)
		require.Equal(t, text, res.Text)
		require.Equal(t, len(text), res.Count)
	}
}

func TestMemoryChannel_Stream_HandlerError(t *testing.T) {
	ch := rpc.NewMemoryChannel(newEchoMux())
	defer ch.Close()

	s, err := ch.Connect(t.Context(), "/upper")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, rpc.Send(s, &echoReq{Text: "fail"}))
	_, err = s.Recv()
	require.ErrorIs(t, err, rpc.ErrRemote)
	require.Contains(t, err.Error(), "stream boom")
}

func TestMemoryChannel_Stream_ServerEnds(t *testing.T) {
	mux := rpc.NewMux()
	mux.HandleStream("/one", func(ctx context.Context, s rpc.Stream) error {
		return s.Send([]byte("only"))
	})
	ch := rpc.NewMemoryChannel(mux)
	defer ch.Close()

	s, err := ch.Connect(t.Context(), "/one")
	require.NoError(t, err)

	msg, err := s.Recv()
	require.NoError(t, err)
	require.Equal(t, "only", string(msg))

	_, err = s.Recv()
	require.ErrorIs(t, err, io.EOF)

	require.ErrorIs(t, s.Send([]byte("late")), rpc.ErrStreamClosed)
}

func TestMemoryChannel_Stream_ClientCloseStopsHandler(t *testing.T) {
	stopped := make(chan struct{})
	mux := rpc.NewMux()
	mux.HandleStream("/wait", func(ctx context.Context, s rpc.Stream) error {
		defer close(stopped)
		_, err := s.Recv()
		return err
	})
	ch := rpc.NewMemoryChannel(mux)
	defer ch.Close()

	s, err := ch.Connect(t.Context(), "/wait")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestMux_Methods(t *testing.T) {
	unary, streams := newEchoMux().Methods()
	require.Equal(t, []string{"/echo"}, unary)
	require.Equal(t, []string{"/upper"}, streams)
}

func TestNoRetry(t *testing.T) {
	var calls int
	err := rpc.NoRetry().Do(t.Context(), func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestBackoffPolicy_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	var notified int
	p := rpc.BackoffPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		OnRetry:         func(error, time.Duration) { notified++ },
	}
	err := p.Do(t.Context(), func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, 2, notified)
}

func TestBackoffPolicy_MaxTries(t *testing.T) {
	var calls int
	p := rpc.BackoffPolicy{InitialInterval: time.Millisecond, MaxTries: 2}
	err := p.Do(t.Context(), func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.EqualError(t, err, "transient")
	require.Equal(t, 2, calls)
}

func TestBackoffPolicy_PermanentStops(t *testing.T) {
	sentinel := errors.New("rejected")
	for name, fail := range map[string]error{
		"permanent":      rpc.Permanent(sentinel),
		"unknown method": rpc.ErrUnknownMethod,
		"canceled":       context.Canceled,
	} {
		t.Run(name, func(t *testing.T) {
			var calls int
			p := rpc.BackoffPolicy{InitialInterval: time.Millisecond}
			err := p.Do(t.Context(), func(ctx context.Context) error {
				calls++
				return fail
			})
			require.Error(t, err)
			require.Equal(t, 1, calls)
		})
	}
}

func TestInstrument(t *testing.T) {
	m := &recordingMetrics{}
	ch := rpc.Instrument(rpc.NewMemoryChannel(newEchoMux()), m)
	defer ch.Close()

	_, err := rpc.Unary[echoReq, echoRes](t.Context(), ch, "/echo", &echoReq{Text: "x"})
	require.NoError(t, err)
	_, err = ch.Call(t.Context(), "/missing", nil)
	require.Error(t, err)

	s, err := ch.Connect(t.Context(), "/upper")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.Equal(t, []string{"/echo:true", "/missing:false"}, m.completed)
	require.Equal(t, []string{"unknown_method"}, m.errors)
	require.Equal(t, 1, m.opened)
	require.Equal(t, 1, m.closed)
}

func TestInstrumentMux(t *testing.T) {
	m := &recordingMetrics{}
	ch := rpc.NewMemoryChannel(rpc.InstrumentMux(newEchoMux(), m))
	defer ch.Close()

	_, err := rpc.Unary[echoReq, echoRes](t.Context(), ch, "/echo", &echoReq{Text: "x"})
	require.NoError(t, err)
	_, err = rpc.Unary[echoReq, echoRes](t.Context(), ch, "/echo", &echoReq{Text: "fail"})
	require.ErrorIs(t, err, rpc.ErrRemote)

	s, err := ch.Connect(t.Context(), "/upper")
	require.NoError(t, err)
	require.NoError(t, rpc.Send(s, &echoReq{Text: "a"}))
	_, err = rpc.Recv[echoRes](s)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.Eventually(t, func() bool { return m.snapshot().closed == 1 }, time.Second, time.Millisecond)
	got := m.snapshot()
	require.Equal(t, []string{"/echo:true", "/echo:false"}, got.completed)
	require.Equal(t, 1, got.opened)

	unary, streams := rpc.InstrumentMux(newEchoMux(), m).Methods()
	require.Equal(t, []string{"/echo"}, unary)
	require.Equal(t, []string{"/upper"}, streams)
}

type recordingMetrics struct {
	mu        sync.Mutex
	completed []string
	errors    []string
	opened    int
	closed    int
}

type recorded struct {
	completed []string
	opened    int
	closed    int
}

func (m *recordingMetrics) snapshot() recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recorded{completed: append([]string(nil), m.completed...), opened: m.opened, closed: m.closed}
}

func (m *recordingMetrics) CallDuration(string) metrics.Timer { return metrics.NopTimer() }

func (m *recordingMetrics) CallCompleted(method string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, method+":"+metrics.BoolLabel(success))
}

func (m *recordingMetrics) StreamOpened(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
}

func (m *recordingMetrics) StreamClosed(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *recordingMetrics) TransportError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}
