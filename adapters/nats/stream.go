package nats

import (
	"context"
	"errors"
	"io"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/esclient-go/core/rpc"
)

const (
	headerMethod = "Esclient-Method"
	headerInbox  = "Esclient-Inbox"
	headerFrame  = "Esclient-Frame"
	headerError  = "Esclient-Error"
	headerCode   = "Esclient-Code"

	frameData  = "data"
	frameEnd   = "end"
	frameError = "error"

	codeUnknownMethod = "unknown_method"
)

// stream is one side of a stream carried over two inbox subjects. Each side
// subscribes its own inbox and publishes frames to the inbox of its peer.
type stream struct {
	nc     *natsgo.Conn
	inbox  string
	peer   string // set once the handshake completed
	ctx    context.Context
	cancel context.CancelFunc
	sub    *natsgo.Subscription

	frames    chan []byte
	onPeerEnd func()
	onClose   func()

	peerOnce sync.Once
	peerDone chan struct{}
	peerErr  error // set before peerDone is closed

	closeOnce sync.Once
	closed    chan struct{}
}

func newStream(ctx context.Context, cancel context.CancelFunc, nc *natsgo.Conn, inbox string) (*stream, error) {
	s := &stream{
		nc:       nc,
		inbox:    inbox,
		ctx:      ctx,
		cancel:   cancel,
		frames:   make(chan []byte, 64),
		peerDone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	sub, err := nc.Subscribe(inbox, s.receive)
	if err != nil {
		cancel()
		return nil, err
	}
	s.sub = sub
	return s, nil
}

func (s *stream) receive(msg *natsgo.Msg) {
	switch msg.Header.Get(headerFrame) {
	case frameData:
		select {
		case s.frames <- msg.Data:
		case <-s.closed:
		}
	case frameEnd:
		s.peerEnded(io.EOF)
	case frameError:
		s.peerEnded(rpc.RemoteError(msg.Header.Get(headerError)))
	}
}

func (s *stream) peerEnded(err error) {
	s.peerOnce.Do(func() {
		s.peerErr = err
		close(s.peerDone)
		if s.onPeerEnd != nil {
			s.onPeerEnd()
		}
	})
}

func (s *stream) Send(frame []byte) error {
	select {
	case <-s.closed:
		return rpc.ErrStreamClosed
	case <-s.peerDone:
		return rpc.ErrStreamClosed
	default:
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	msg := natsgo.NewMsg(s.peer)
	msg.Header.Set(headerFrame, frameData)
	msg.Data = frame
	if err := s.nc.PublishMsg(msg); err != nil {
		if errors.Is(err, natsgo.ErrConnectionClosed) {
			return rpc.ErrStreamClosed
		}
		return err
	}
	return nil
}

func (s *stream) Recv() ([]byte, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.peerDone:
		// frames published before the end frame are still delivered
		select {
		case frame := <-s.frames:
			return frame, nil
		default:
			return nil, s.peerErr
		}
	case <-s.closed:
		return nil, rpc.ErrStreamClosed
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *stream) Close() error {
	s.end(nil)
	return nil
}

// end tells the peer how the stream ended, unless the peer ended it first
// or is still unknown, and releases the inbox.
func (s *stream) end(err error) {
	s.closeOnce.Do(func() {
		close(s.closed)

		select {
		case <-s.peerDone:
		default:
			if s.peer != "" {
				msg := natsgo.NewMsg(s.peer)
				if err != nil {
					msg.Header.Set(headerFrame, frameError)
					msg.Header.Set(headerError, err.Error())
				} else {
					msg.Header.Set(headerFrame, frameEnd)
				}
				_ = s.nc.PublishMsg(msg)
			}
		}

		_ = s.sub.Unsubscribe()
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

var _ rpc.Stream = (*stream)(nil)
