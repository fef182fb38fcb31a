package postgres

import (
	"context"
	"fmt"
)

// Schema creates the artifact table. The unique index on
// unique_identifier_hash is what makes concurrent inserts of the same
// artifact safe.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
		id UUID PRIMARY KEY,
		document_type TEXT NOT NULL,
		scope TEXT NOT NULL,
		title TEXT NOT NULL,
		unique_identifier_hash TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS artifacts_unique_identifier_hash_idx ON artifacts (unique_identifier_hash)`,
	`CREATE INDEX IF NOT EXISTS artifacts_content_hash_idx ON artifacts (content_hash)`,
}

// Migrate applies Schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("Migrate: statement %d: %w", i+1, err)
		}
	}
	return nil
}
