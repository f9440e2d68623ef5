package wire

import (
	"fmt"
)

// Message is implemented by every frame type carried on the wire.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// Codec is a gRPC codec for the hand-marshalled frame types. It is passed
// per-call with grpc.ForceCodec rather than registered globally, so it never
// interferes with other codecs in the process.
type Codec struct{}

// Name returns the codec's content-subtype.
func (Codec) Name() string { return "veloframe" }

// Marshal implements grpc encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.Marshal()
}

// Unmarshal implements grpc encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}
