// Package mock provides a deterministic embedder for tests and
// offline development. Vectors are derived from a hash of the input
// text: identical texts always embed identically, distinct texts land
// on effectively uncorrelated unit vectors. There is no semantic
// similarity, only exact-text identity.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates hash-seeded pseudo-random unit vectors.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with 384 dimensions, matching
// all-MiniLM-L6-v2 so it can stand in for the local ONNX model.
func New() *Embedder {
	return NewWithDimensions(384)
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dims int) *Embedder {
	return &Embedder{dimensions: dims}
}

// Embed derives a deterministic unit vector from the text.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		// LCG stream seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
