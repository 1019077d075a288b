// Package grpcx wires the hand-rolled internal/wire message codec
// into gRPC's custom-codec extension point, and holds the dial
// helpers shared by the conduit adapters.
package grpcx

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with google.golang.org/grpc/encoding and
// selected per-call via grpc.CallContentSubtype, replacing the
// default "proto" codec.
const CodecName = "gatewaywire"

// wireMessage is implemented by every internal/wire message type.
type wireMessage interface {
	Marshal() ([]byte, error)
}

type wireUnmarshaler interface {
	Unmarshal([]byte) error
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("grpcx: %T does not implement wire message Marshal", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireUnmarshaler)
	if !ok {
		return fmt.Errorf("grpcx: %T does not implement wire message Unmarshal", v)
	}
	return m.Unmarshal(data)
}

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
