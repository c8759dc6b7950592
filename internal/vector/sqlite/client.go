// Package sqlite provides the embedded vector index backend. Embeddings
// are stored as float32 blobs in a SQLite database and scored with
// in-process cosine distance, which keeps the service dependency-free
// for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // database/sql driver

	"github.com/sibylhq/sibyl/internal/vector"
	"github.com/sibylhq/sibyl/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	collection  TEXT NOT NULL,
	id          TEXT NOT NULL,
	document_id TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	content     TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	embedding   BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(collection, document_id);
`

// Client is the sqlite-backed vector index.
type Client struct {
	db *sql.DB
	mu sync.RWMutex
}

// Config holds configuration for the client.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// index.
	Path string
}

// Compile-time check that Client implements vector.Index.
var _ vector.Index = (*Client)(nil)

// NewClient opens (creating if needed) the database and ensures the
// schema exists.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info().Str("path", cfg.Path).Msg("Opened sqlite vector index")
	return &Client{db: db}, nil
}

// Add upserts documents into a collection in a single transaction.
func (c *Client) Add(ctx context.Context, collection models.Collection, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `
		INSERT OR REPLACE INTO chunks (collection, id, document_id, seq, content, source, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		metaJSON, merr := json.Marshal(doc.Metadata)
		if merr != nil {
			err = fmt.Errorf("marshal metadata for %s: %w", doc.ID, merr)
			return err
		}

		_, err = stmt.ExecContext(ctx,
			string(collection),
			doc.ID,
			doc.DocumentID,
			doc.Seq,
			doc.Content,
			doc.Source,
			string(metaJSON),
			serializeEmbedding(doc.Embedding),
		)
		if err != nil {
			err = fmt.Errorf("insert chunk %s: %w", doc.ID, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Debug().
		Str("collection", string(collection)).
		Int("count", len(docs)).
		Msg("Added chunks to sqlite index")
	return nil
}

// Query scans the collection, scores every candidate with cosine
// distance and returns the k nearest. Brute force is deliberate: the
// embedded backend targets corpora small enough that a scan beats the
// cost of maintaining an ANN structure.
func (c *Client) Query(ctx context.Context, collection models.Collection, embedding []float32, k int, filter models.Filter) ([]vector.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, document_id, seq, content, source, metadata, embedding
		FROM chunks WHERE collection = ?
	`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var (
			doc      vector.Document
			metaJSON string
			embBlob  []byte
		)
		if err := rows.Scan(&doc.ID, &doc.DocumentID, &doc.Seq, &doc.Content, &doc.Source, &metaJSON, &embBlob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
		}
		if !filter.Matches(doc.Metadata) {
			continue
		}

		doc.Embedding = deserializeEmbedding(embBlob)
		results = append(results, vector.Result{
			Document: doc,
			Distance: vector.CosineDistance(embedding, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// DeleteByDocument removes all chunks of a document from a collection.
func (c *Client) DeleteByDocument(ctx context.Context, collection models.Collection, documentID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND document_id = ?`,
		string(collection), documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	log.Debug().
		Str("collection", string(collection)).
		Str("documentID", documentID).
		Int64("deleted", deleted).
		Msg("Deleted document chunks from sqlite index")
	return deleted, nil
}

// Count returns the number of chunks stored in a collection.
func (c *Client) Count(ctx context.Context, collection models.Collection) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`,
		string(collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	return c.db.Close()
}

// serializeEmbedding encodes a float32 vector as a little-endian blob.
func serializeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding decodes a little-endian blob into a float32
// vector. Trailing partial words are dropped.
func deserializeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
