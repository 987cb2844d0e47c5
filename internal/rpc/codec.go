// Package rpc is the wire contract between the GrowthVault client and the
// remote document server: message types, the gRPC service description and a
// JSON codec registered under the "json" content subtype.
//
// Documents travel as raw JSON so the server stores exactly the bytes the
// client produced.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype both sides use.
const CodecName = "json"

// MaxMessageSize bounds a single message in either direction. Documents
// carry images as data URIs, so the gRPC default of 4 MiB is too small.
const MaxMessageSize = 32 << 20

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
