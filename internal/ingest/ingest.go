// Package ingest turns raw documents into embedded chunks in the
// vector index. Ingestion is idempotent: re-submitting a document
// replaces its previous chunks instead of accumulating duplicates.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sibylhq/sibyl/internal/chunking"
	"github.com/sibylhq/sibyl/internal/embedding"
	"github.com/sibylhq/sibyl/internal/vector"
	"github.com/sibylhq/sibyl/pkg/models"
)

const (
	// embedBatchSize bounds the number of chunk texts sent to the
	// embedding provider per request.
	embedBatchSize = 64

	// embedConcurrency bounds in-flight embedding batches per document.
	embedConcurrency = 4
)

// Document is a raw document submitted for ingestion.
type Document struct {
	// ID identifies the document; generated when empty.
	ID string

	// UserID scopes the document to a tenant collection.
	UserID string

	// Class selects the content class ("documents" or "code").
	Class string

	// Text is the full document text (required).
	Text string

	// Source records where the document came from (filename, URL).
	Source string

	// Metadata is attached to every chunk of the document.
	Metadata map[string]string
}

// Result reports what an ingestion run stored.
type Result struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Replaced   int64  `json:"replaced"`
}

// Ingester chunks, embeds and stores documents.
type Ingester struct {
	chunker  *chunking.Chunker
	embedder embedding.Embedder
	index    vector.Index
}

// NewIngester wires the ingestion pipeline.
func NewIngester(chunker *chunking.Chunker, embedder embedding.Embedder, index vector.Index) *Ingester {
	return &Ingester{chunker: chunker, embedder: embedder, index: index}
}

// Ingest splits, embeds and stores a document. Existing chunks of the
// same document are deleted first so stale tails from a previously
// longer version cannot survive.
func (s *Ingester) Ingest(ctx context.Context, doc Document) (Result, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return Result{}, fmt.Errorf("document text is empty")
	}
	if doc.UserID == "" {
		return Result{}, fmt.Errorf("user id is required")
	}
	if doc.Class == "" {
		doc.Class = models.ClassDocuments
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	meta := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["document_id"] = doc.ID
	if doc.Source != "" {
		meta["source"] = doc.Source
	}

	chunks := s.chunker.Split(doc.ID, doc.Text, doc.Source, meta)
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("document %s produced no chunks", doc.ID)
	}

	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	collection := models.NewCollection(doc.UserID, doc.Class)

	replaced, err := s.index.DeleteByDocument(ctx, collection, doc.ID)
	if err != nil {
		return Result{}, fmt.Errorf("replace document %s: %w", doc.ID, err)
	}

	docs := make([]vector.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = vector.Document{
			ID:         ch.ID,
			DocumentID: ch.DocumentID,
			Seq:        ch.Seq,
			Content:    ch.Text,
			Source:     ch.Source,
			Metadata:   ch.Metadata,
			Embedding:  embeddings[i],
		}
	}
	if err := s.index.Add(ctx, collection, docs); err != nil {
		return Result{}, fmt.Errorf("store document %s: %w", doc.ID, err)
	}

	log.Info().
		Str("documentID", doc.ID).
		Str("collection", string(collection)).
		Int("chunks", len(chunks)).
		Int64("replaced", replaced).
		Msg("Ingested document")

	return Result{DocumentID: doc.ID, Chunks: len(chunks), Replaced: replaced}, nil
}

// Delete removes a document's chunks from a collection and reports
// whether anything was actually removed.
func (s *Ingester) Delete(ctx context.Context, userID, class, documentID string) (bool, error) {
	if class == "" {
		class = models.ClassDocuments
	}
	collection := models.NewCollection(userID, class)

	deleted, err := s.index.DeleteByDocument(ctx, collection, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return deleted > 0, nil
}

// embedChunks embeds chunk texts in bounded parallel batches, keeping
// results aligned with chunk order.
func (s *Ingester) embedChunks(ctx context.Context, chunks []models.DocumentChunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			vecs, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			copy(embeddings[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
