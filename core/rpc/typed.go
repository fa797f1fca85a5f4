package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Unary encodes req, calls method and decodes the response into Res.
func Unary[Req any, Res any](ctx context.Context, ch Channel, method string, req *Req) (*Res, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s request: %v", ErrMalformedMessage, method, err)
	}
	data, err = ch.Call(ctx, method, data)
	if err != nil {
		return nil, err
	}
	res := new(Res)
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrMalformedMessage, method, err)
	}
	return res, nil
}

func Send[T any](s Stream, msg *T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode %T: %v", ErrMalformedMessage, msg, err)
	}
	return s.Send(data)
}

func Recv[T any](s Stream) (*T, error) {
	data, err := s.Recv()
	if err != nil {
		return nil, err
	}
	msg := new(T)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: decode %T: %v", ErrMalformedMessage, msg, err)
	}
	return msg, nil
}

// HandleUnary registers a typed unary handler on m.
func HandleUnary[Req any, Res any](m *Mux, method string, h func(context.Context, *Req) (*Res, error)) {
	m.Handle(method, func(ctx context.Context, data []byte) ([]byte, error) {
		req := new(Req)
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("%w: decode %s request: %v", ErrMalformedMessage, method, err)
		}
		res, err := h(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})
}

// HandleStream registers a stream handler on m.
func HandleStream(m *Mux, method string, h StreamHandler) {
	m.HandleStream(method, h)
}
