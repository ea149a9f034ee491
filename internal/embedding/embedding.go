// Package embedding turns query text into dense vectors, with a
// model-versioned cache in front of the provider so repeated queries
// never pay for a second API round-trip.
package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultDimensions is the vector width of text-embedding-ada-002.
	DefaultDimensions = 1536
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when the provider returns a vector
	// of an unexpected width
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// Provider generates a dense vector for a piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelVersion identifies the embedding model. It is folded into
	// cache keys so a model upgrade invalidates every cached vector.
	ModelVersion() string
}

// EncodeVector serializes a vector for cache storage.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a vector produced by EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("vector payload too short: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf[:4]))
	if len(buf) != 4+4*n {
		return nil, fmt.Errorf("vector payload malformed: declared %d floats in %d bytes", n, len(buf))
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4+4*i:]))
	}
	return vec, nil
}
