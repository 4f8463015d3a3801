package embeddings

import (
	"context"
	"hash/fnv"
)

// LCG constants for deterministic pseudo-random generation, standard
// PCG/LCG values.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407

	seedShift  = 33
	floatScale = 0x40000000
)

const mockModelName = "mock-embedder"

// MockEmbedder generates deterministic unit vectors from the input text
// hash, so tests and keyless local runs get consistent embeddings for the
// same input.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder builds a mock embedder with the given dimensions.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = Dimensions
	}

	return &MockEmbedder{dimensions: dims}
}

// Embed implements Embedder.
func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text)) // fnv.Write never returns an error
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		seed = seed*lcgMultiplier + lcgIncrement
		vec[i] = float32(int64(seed>>seedShift)-floatScale) / float32(floatScale)
	}

	return Normalize(vec), nil
}

// ModelName implements Embedder.
func (e *MockEmbedder) ModelName() string {
	return mockModelName
}

var _ Embedder = (*MockEmbedder)(nil)
