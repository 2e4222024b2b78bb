// Package peer implements the four peer-to-peer streaming services of
// spec.md §4.8 (Identifier, Connection, Epoch, Transaction) on top of
// google.golang.org/grpc, the teacher's declared but (in the retrieved
// slice) unused grpc dependency. Rather than generate stubs with protoc,
// each message implements a tiny Marshal/Unmarshal pair over the codec
// package and is carried by a custom grpc.Codec — the same
// codegen-free technique used by grpc reverse proxies that forward
// opaque payloads.
package peer

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with grpc's encoding registry and selected per
// call via grpc.CallContentSubtype(CodecName).
const CodecName = "concilium"

// Marshaler is implemented by every peer RPC request/response message.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler is implemented by every peer RPC request/response message.
type Unmarshaler interface {
	Unmarshal([]byte) error
}

type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Marshaler)
	if !ok {
		return nil, fmt.Errorf("peer: %T does not implement Marshaler", v)
	}
	return m.Marshal()
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	u, ok := v.(Unmarshaler)
	if !ok {
		return fmt.Errorf("peer: %T does not implement Unmarshaler", v)
	}
	return u.Unmarshal(data)
}

func (rawCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}
