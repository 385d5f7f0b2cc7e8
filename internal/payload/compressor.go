package payload

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor turns serialized payloads into compressed bytes and back.
type Compressor interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Compressor names accepted by CompressorByName.
const (
	Snappy = "snappy"
	Zstd   = "zstd"
	Brotli = "brotli"
)

// CompressorByName returns the compressor registered under name. An empty name
// selects Snappy, the format existing clients of the cache write.
func CompressorByName(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Snappy:
		return snappyCompressor{}, nil
	case Zstd:
		return newZstdCompressor()
	case Brotli:
		return brotliCompressor{}, nil
	default:
		names := []string{Snappy, Zstd, Brotli}
		sort.Strings(names)
		return nil, fmt.Errorf("payload: unknown compressor %q (available: %v)", name, names)
	}
}

// snappyCompressor writes the Snappy block format using the S2 encoder in
// Snappy-compatible mode. The S2 decoder reads any Snappy block.
type snappyCompressor struct{}

func (snappyCompressor) Name() string { return Snappy }

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return s2.EncodeSnappy(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	return s2.Decode(nil, src)
}

// zstdCompressor shares one encoder and one decoder; EncodeAll and DecodeAll
// are safe for concurrent use.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("payload: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("payload: zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (*zstdCompressor) Name() string { return Zstd }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, nil)
}

type brotliCompressor struct{}

func (brotliCompressor) Name() string { return Brotli }

func (brotliCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCompressor) Decompress(src []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(src)))
}
