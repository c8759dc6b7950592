// Package embedding provides text embedding generation with swappable
// providers. The live provider talks to an OpenAI-compatible REST API;
// the mock provider is deterministic and needs no credentials.
package embedding

import (
	"context"
	"fmt"

	"github.com/sibylhq/sibyl/internal/config"
)

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// Name returns the provider name for logging and status reporting.
	Name() string
}

// New constructs the embedder selected by the configuration.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return newOpenAIEmbedder(cfg)
	case config.ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
