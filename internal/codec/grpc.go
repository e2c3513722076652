package codec

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content-subtype the codec is registered under.
const Name = "dotclock"

func init() {
	encoding.RegisterCodec(grpcCodec{})
}

// grpcCodec lets gRPC carry Message values without generated code.
type grpcCodec struct{}

func (grpcCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, v)
	}
	return Marshal(m), nil
}

func (grpcCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnknownMessage, v)
	}
	return Unmarshal(data, m)
}

func (grpcCodec) Name() string {
	return Name
}
