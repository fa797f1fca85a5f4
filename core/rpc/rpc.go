package rpc

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrChannelClosed    = errors.New("channel closed")
	ErrStreamClosed     = errors.New("stream closed")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrRemote           = errors.New("remote error")
	ErrMalformedMessage = errors.New("malformed message")
)

type (
	// Channel is the client side of the connection to the runtime.
	Channel interface {
		// Call sends req to method and waits for the response.
		Call(ctx context.Context, method string, req []byte) ([]byte, error)
		// Connect opens a bidirectional stream on method. The stream ends
		// when ctx is done or either side closes it.
		Connect(ctx context.Context, method string) (Stream, error)
		Close() error
	}

	// Stream carries frames in both directions. Send and Recv may be used
	// from different goroutines; concurrent Sends must be serialized by
	// the caller.
	Stream interface {
		Send(frame []byte) error
		// Recv blocks for the next frame. It returns io.EOF when the peer
		// ended the stream normally.
		Recv() ([]byte, error)
		Close() error
	}
)

// RemoteError wraps the message of an error reported by the peer.
func RemoteError(msg string) error {
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

// IsCanceled reports whether err is a cancellation or deadline outcome.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
