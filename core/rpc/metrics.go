package rpc

import (
	"context"
	"errors"

	"github.com/codewandler/esclient-go/core/metrics"
)

// Metrics observes traffic on a Channel.
type Metrics interface {
	CallDuration(method string) metrics.Timer
	CallCompleted(method string, success bool)
	StreamOpened(method string)
	StreamClosed(method string)
	TransportError(kind string)
}

type nopMetrics struct{}

func (nopMetrics) CallDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) CallCompleted(string, bool)        {}
func (nopMetrics) StreamOpened(string)               {}
func (nopMetrics) StreamClosed(string)               {}
func (nopMetrics) TransportError(string)             {}

func NopMetrics() Metrics { return nopMetrics{} }

// Instrument wraps ch so that every call and stream is reported to m.
func Instrument(ch Channel, m Metrics) Channel {
	if m == nil {
		return ch
	}
	return &instrumented{Channel: ch, m: m}
}

type instrumented struct {
	Channel
	m Metrics
}

func (c *instrumented) Call(ctx context.Context, method string, req []byte) ([]byte, error) {
	t := c.m.CallDuration(method)
	res, err := c.Channel.Call(ctx, method, req)
	t.ObserveDuration()
	c.m.CallCompleted(method, err == nil)
	c.recordError(err)
	return res, err
}

func (c *instrumented) Connect(ctx context.Context, method string) (Stream, error) {
	s, err := c.Channel.Connect(ctx, method)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	c.m.StreamOpened(method)
	return &instrumentedStream{Stream: s, method: method, m: c.m}, nil
}

// recordError maps known errors to metric labels.
func (c *instrumented) recordError(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrRemote):
		// reported by the peer, not a transport problem
	case errors.Is(err, context.DeadlineExceeded):
		c.m.TransportError("timeout")
	case errors.Is(err, context.Canceled):
		c.m.TransportError("canceled")
	case errors.Is(err, ErrChannelClosed):
		c.m.TransportError("closed")
	case errors.Is(err, ErrUnknownMethod):
		c.m.TransportError("unknown_method")
	case errors.Is(err, ErrMalformedMessage):
		c.m.TransportError("malformed")
	default:
		c.m.TransportError("other")
	}
}

type instrumentedStream struct {
	Stream
	method string
	m      Metrics
	closed bool
}

func (s *instrumentedStream) Close() error {
	if !s.closed {
		s.closed = true
		s.m.StreamClosed(s.method)
	}
	return s.Stream.Close()
}

// InstrumentMux returns a mux serving the methods of mux that reports every
// handled call and stream to m. Methods added to mux later are not served.
func InstrumentMux(mux *Mux, m Metrics) *Mux {
	if m == nil {
		return mux
	}
	out := NewMux()
	mux.mu.RLock()
	defer mux.mu.RUnlock()
	for method, h := range mux.unary {
		out.unary[method] = func(ctx context.Context, req []byte) ([]byte, error) {
			t := m.CallDuration(method)
			res, err := h(ctx, req)
			t.ObserveDuration()
			m.CallCompleted(method, err == nil)
			return res, err
		}
	}
	for method, h := range mux.streams {
		out.streams[method] = func(ctx context.Context, s Stream) error {
			m.StreamOpened(method)
			defer m.StreamClosed(method)
			return h(ctx, s)
		}
	}
	return out
}
