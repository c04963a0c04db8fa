package grpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype under which the JSON codec is registered.
const CodecName = "json"

// JSONCodec carries the arbiter's Go message structs over gRPC as JSON.
type JSONCodec struct{}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// Name implements encoding.Codec.
func (JSONCodec) Name() string { return CodecName }

// Marshal implements encoding.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal: %w", err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("json codec unmarshal: %w", err)
	}
	return nil
}
