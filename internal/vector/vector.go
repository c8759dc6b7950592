// Package vector defines the index abstraction shared by the vector
// store backends. An Index persists (embedding, chunk, metadata)
// triples per logical collection and answers nearest-neighbor queries
// with a cosine distance score in [0,2].
package vector

import (
	"context"
	"math"

	"github.com/sibylhq/sibyl/pkg/models"
)

// Document is a chunk plus its embedding, ready for storage.
type Document struct {
	ID         string
	DocumentID string
	Seq        int
	Content    string
	Source     string
	Metadata   map[string]string
	Embedding  []float32
}

// Result is a stored document with its query distance.
type Result struct {
	Document
	Distance float64
}

// Index is the vector store contract. Implementations are safe for
// concurrent use; collections are created on first write.
type Index interface {
	// Add upserts documents into a collection. Documents with an
	// existing id are overwritten.
	Add(ctx context.Context, collection models.Collection, docs []Document) error

	// Query returns up to k nearest neighbors of the embedding within a
	// collection, most relevant (lowest distance) first. The filter is
	// applied as an exact-match AND predicate.
	Query(ctx context.Context, collection models.Collection, embedding []float32, k int, filter models.Filter) ([]Result, error)

	// DeleteByDocument removes every chunk of a document from a
	// collection and returns the number removed.
	DeleteByDocument(ctx context.Context, collection models.Collection, documentID string) (int64, error)

	// Count returns the number of chunks stored in a collection.
	Count(ctx context.Context, collection models.Collection) (int64, error)

	// Close releases backend resources.
	Close() error
}

// CosineDistance computes 1 - cosine_similarity, yielding a distance in
// [0,2]. Mismatched or zero-length vectors score as maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
