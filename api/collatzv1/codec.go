// Package collatzv1 defines the daemon's gRPC API: message types, service
// descriptors, typed clients and the JSON codec they are carried in.
package collatzv1

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of every collatz.v1 call.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOptions selects the JSON codec; pass it to grpc.WithDefaultCallOptions.
func CallOptions() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
