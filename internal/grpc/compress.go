package grpc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encoding names advertised on event batches.
const (
	EncodingZstd   = "zstd"
	EncodingSnappy = "snappy"
	EncodingGzip   = "gzip"
	EncodingNone   = "identity"
)

// Compressor applies symmetric compression to payload byte slices.
type Compressor interface {
	//1.- Name returns the codec identifier advertised in RPC payloads.
	Name() string
	//2.- Compress encodes the provided payload into a compressed representation.
	Compress(data []byte) ([]byte, error)
	//3.- Decompress restores the original payload from its compressed form.
	Decompress(data []byte) ([]byte, error)
}

// CompressorByName resolves an encoding name; an empty name selects zstd.
func CompressorByName(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingZstd:
		return NewZstdCompressor()
	case EncodingSnappy:
		return NewSnappyCompressor(), nil
	case EncodingGzip:
		return NewGZIPCompressor(), nil
	case EncodingNone:
		return identityCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// gzipCompressor wraps the klauspost gzip implementation.
type gzipCompressor struct{}

// NewGZIPCompressor constructs a Compressor backed by gzip.
func NewGZIPCompressor() Compressor {
	return gzipCompressor{}
}

// Name reports the identifier used for gzip encoded payloads.
func (gzipCompressor) Name() string { return EncodingGzip }

// Compress encodes data using the gzip format.
func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes gzip-encoded data and returns the raw payload.
func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	//1.- Guard against nil payloads to simplify caller logic.
	if len(data) == 0 {
		return nil, fmt.Errorf("gzip decompress: empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("gzip copy: %w", err)
	}
	return buf.Bytes(), nil
}

// zstdCompressor shares one encoder and decoder; EncodeAll and DecodeAll are safe for concurrent use.
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor constructs a Compressor backed by zstd.
func NewZstdCompressor() (Compressor, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (*zstdCompressor) Name() string { return EncodingZstd }

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("zstd decompress: empty payload")
	}
	out, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

type snappyCompressor struct{}

// NewSnappyCompressor constructs a Compressor using the snappy block format.
func NewSnappyCompressor() Compressor { return snappyCompressor{} }

func (snappyCompressor) Name() string { return EncodingSnappy }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("snappy decompress: empty payload")
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return out, nil
}

type identityCompressor struct{}

func (identityCompressor) Name() string                         { return EncodingNone }
func (identityCompressor) Compress(data []byte) ([]byte, error) { return data, nil }
func (identityCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
