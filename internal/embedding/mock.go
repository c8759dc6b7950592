package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is the deterministic offline provider. The same text
// always yields the same unit-length vector, so similarity search stays
// stable across runs without a live model.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a deterministic embedder with the given
// vector size.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (m *MockEmbedder) Name() string    { return "mock" }
func (m *MockEmbedder) Dimensions() int { return m.dimensions }

// Embed derives a vector from an FNV hash of the text expanded through
// a xorshift sequence, then normalizes it to unit length.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimensions)
	if text == "" {
		return vec, nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()
	if state == 0 {
		state = 1
	}

	var norm float64
	for i := range vec {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}
