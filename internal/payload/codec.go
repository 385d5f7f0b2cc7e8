// Package payload converts cached values to their transport form and back:
// JSON text, compressed, then base64 encoded.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/Belphemur/flash/internal/apperrors"
)

// Codec serializes and compresses values for storage.
type Codec struct {
	compressor Compressor
}

// New creates a Codec using the given compressor. A nil compressor selects Snappy.
func New(c Compressor) *Codec {
	if c == nil {
		c = snappyCompressor{}
	}
	return &Codec{compressor: c}
}

// Marshal returns the canonical JSON text of value. HTML characters are not
// escaped so the output matches what other clients of the cache write.
func Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, &apperrors.ErrSerialization{Err: err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Compress serializes value to JSON, compresses it and encodes it as base64.
// Cyclic or unsupported values fail with *apperrors.ErrSerialization.
func (c *Codec) Compress(value any) (string, error) {
	raw, err := Marshal(value)
	if err != nil {
		return "", err
	}
	compressed, err := c.compressor.Compress(raw)
	if err != nil {
		return "", &apperrors.ErrSerialization{Err: err}
	}
	return base64.StdEncoding.EncodeToString(compressed), nil
}

// Uncompress reverses Compress. An empty blob is a cache miss and yields
// (nil, nil). Malformed input fails with *apperrors.ErrDecode.
func (c *Codec) Uncompress(blob string) (any, error) {
	if blob == "" {
		return nil, nil
	}
	compressed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, &apperrors.ErrDecode{Err: err}
	}
	raw, err := c.compressor.Decompress(compressed)
	if err != nil {
		return nil, &apperrors.ErrDecode{Err: err}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &apperrors.ErrDecode{Err: err}
	}
	return value, nil
}

// Unmarshal parses JSON text. Malformed input fails with *apperrors.ErrDecode.
func Unmarshal(text string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, &apperrors.ErrDecode{Err: err}
	}
	return value, nil
}
