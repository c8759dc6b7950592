// Package pgvector provides the PostgreSQL+pgvector index backend for
// multi-node deployments.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sibylhq/sibyl/internal/vector"
	"github.com/sibylhq/sibyl/pkg/models"
)

// chunkRecord is the GORM model for the chunks table (created by
// migrations, see migrations.go).
type chunkRecord struct {
	Collection string       `gorm:"primaryKey;column:collection"`
	ID         string       `gorm:"primaryKey;column:id"`
	DocumentID string       `gorm:"column:document_id;index"`
	Seq        int          `gorm:"column:seq"`
	Content    string       `gorm:"column:content"`
	Source     string       `gorm:"column:source"`
	Metadata   string       `gorm:"column:metadata;type:jsonb"`
	Embedding  pgvec.Vector `gorm:"column:embedding"`
}

func (chunkRecord) TableName() string { return "chunks" }

// Config holds configuration for the pgvector client.
type Config struct {
	// DSN is the PostgreSQL connection string (required).
	DSN string

	// Dimensions is the embedding vector size used when creating the
	// table (required).
	Dimensions int
}

// Client provides vector operations via PostgreSQL+pgvector.
type Client struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Compile-time check that Client implements vector.Index.
var _ vector.Index = (*Client)(nil)

// NewClient connects to PostgreSQL and runs schema migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if err := migrate(db.WithContext(ctx), cfg.Dimensions); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info().Int("dimensions", cfg.Dimensions).Msg("Connected to pgvector index")
	return &Client{db: db, sqlDB: sqlDB}, nil
}

// Add upserts documents into a collection.
func (c *Client) Add(ctx context.Context, collection models.Collection, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	records := make([]chunkRecord, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		records = append(records, chunkRecord{
			Collection: string(collection),
			ID:         doc.ID,
			DocumentID: doc.DocumentID,
			Seq:        doc.Seq,
			Content:    doc.Content,
			Source:     doc.Source,
			Metadata:   string(metaJSON),
			Embedding:  pgvec.NewVector(doc.Embedding),
		})
	}
	if len(records) == 0 {
		return nil
	}

	// Upsert: INSERT ... ON CONFLICT (collection, id) DO UPDATE SET ...
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_id", "seq", "content", "source", "metadata", "embedding",
			}),
		}).
		Create(&records).Error
}

// Query performs a cosine-distance search within a collection.
func (c *Client) Query(ctx context.Context, collection models.Collection, embedding []float32, k int, filter models.Filter) ([]vector.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(embedding) == 0 {
		return nil, nil
	}

	// $1 query vector, $2 collection; filter args follow, limit last.
	args := []any{pgvec.NewVector(embedding), string(collection)}
	sqlStr := `
		SELECT id, document_id, seq, content, source, metadata,
		       embedding <=> $1 AS distance
		FROM chunks
		WHERE collection = $2`

	if !filter.IsZero() {
		filterJSON, err := json.Marshal(filter.Map())
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		sqlStr += fmt.Sprintf(" AND metadata @> $%d::jsonb", len(args)+1)
		args = append(args, string(filterJSON))
	}

	sqlStr += fmt.Sprintf(" ORDER BY distance LIMIT $%d", len(args)+1)
	args = append(args, k)

	rows, err := c.sqlDB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var (
			res      vector.Result
			metaJSON string
		)
		if err := rows.Scan(&res.ID, &res.DocumentID, &res.Seq, &res.Content, &res.Source, &metaJSON, &res.Distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &res.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", res.ID, err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// DeleteByDocument removes all chunks of a document from a collection.
func (c *Client) DeleteByDocument(ctx context.Context, collection models.Collection, documentID string) (int64, error) {
	res := c.db.WithContext(ctx).
		Where("collection = ? AND document_id = ?", string(collection), documentID).
		Delete(&chunkRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of chunks stored in a collection.
func (c *Client) Count(ctx context.Context, collection models.Collection) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&chunkRecord{}).
		Where("collection = ?", string(collection)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.sqlDB.Close()
}
