package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// frame carries an encoded rpc message. The rpc layer already encodes its
// messages, so the codec passes bytes through untouched.
type frame struct {
	data []byte
}

type rawCodec struct{}

func (rawCodec) Name() string { return "esclient-raw" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*frame)
	if !ok {
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*frame)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	f.data = append([]byte(nil), data...)
	return nil
}

var _ encoding.Codec = rawCodec{}
