package pgvector

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrate brings the schema up to date. Migrations run in order and
// are recorded in the gormigrate bookkeeping table, so restarts are
// cheap no-ops.
func migrate(db *gorm.DB, dimensions int) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601_enable_pgvector",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP EXTENSION IF EXISTS vector`).Error
			},
		},
		{
			ID: "202602_create_chunks",
			Migrate: func(tx *gorm.DB) error {
				stmt := fmt.Sprintf(`
					CREATE TABLE IF NOT EXISTS chunks (
						collection  TEXT NOT NULL,
						id          TEXT NOT NULL,
						document_id TEXT NOT NULL,
						seq         INTEGER NOT NULL,
						content     TEXT NOT NULL,
						source      TEXT NOT NULL DEFAULT '',
						metadata    JSONB NOT NULL DEFAULT '{}',
						embedding   vector(%d) NOT NULL,
						PRIMARY KEY (collection, id)
					)`, dimensions)
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (collection, document_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP TABLE IF EXISTS chunks`).Error
			},
		},
		{
			ID: "202603_chunks_embedding_index",
			Migrate: func(tx *gorm.DB) error {
				// ivfflat needs rows to pick centroids from, so the
				// index is created lazily with a safe default list size.
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_embedding
					ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_chunks_embedding`).Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
