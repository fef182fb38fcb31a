package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dvloznov/finance-ingest/internal/identity"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint
// failure.
const uniqueViolation = "23505"

// ArtifactRepository implements identity.Store.
type ArtifactRepository struct {
	db  *DB
	now func() time.Time
}

var _ identity.Store = (*ArtifactRepository)(nil)

func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db, now: time.Now}
}

const artifactColumns = `id, document_type, scope, title, unique_identifier_hash, content_hash, content, metadata, created_at, updated_at`

func (r *ArtifactRepository) findOne(ctx context.Context, where string, arg any) (*identity.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE ` + where + ` ORDER BY created_at LIMIT 1`

	var (
		a    identity.Artifact
		meta []byte
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.DocumentType, &a.Scope, &a.Title, &a.IdentifierHash,
		&a.ContentHash, &a.Content, &meta, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	if err := json.Unmarshal(meta, &a.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
	}
	return &a, nil
}

func (r *ArtifactRepository) FindByIdentifier(ctx context.Context, hash string) (*identity.Artifact, error) {
	return r.findOne(ctx, `unique_identifier_hash = $1`, hash)
}

func (r *ArtifactRepository) FindByContentHash(ctx context.Context, hash string) (*identity.Artifact, error) {
	return r.findOne(ctx, `content_hash = $1`, hash)
}

// Upsert inserts unless the identifier hash is taken. A lost race surfaces as
// inserted == false rather than an error.
func (r *ArtifactRepository) Upsert(ctx context.Context, a *identity.Artifact) (bool, error) {
	meta, err := encodeMetadata(a.Metadata)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO artifacts (` + artifactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (unique_identifier_hash) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err = r.db.QueryRowContext(ctx, query,
		a.ID, a.DocumentType, a.Scope, a.Title, a.IdentifierHash,
		a.ContentHash, a.Content, meta, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert artifact: %w", err)
	}
	return true, nil
}

func (r *ArtifactRepository) UpdateContent(ctx context.Context, id uuid.UUID, contentHash, content string, metadata map[string]string) error {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	query := `UPDATE artifacts SET content_hash = $2, content = $3, metadata = $4, updated_at = $5 WHERE id = $1`
	return r.execOne(ctx, "update artifact content", query, id, contentHash, content, meta, r.now())
}

func (r *ArtifactRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, title string, metadata map[string]string) error {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	query := `UPDATE artifacts SET title = $2, metadata = $3, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "update artifact metadata", query, id, title, meta, r.now())
}

func (r *ArtifactRepository) MigrateIdentifier(ctx context.Context, id uuid.UUID, hash string) error {
	query := `UPDATE artifacts SET unique_identifier_hash = $2, updated_at = $3 WHERE id = $1`
	err := r.execOne(ctx, "migrate artifact identifier", query, id, hash, r.now())
	if isUniqueViolation(err) {
		return fmt.Errorf("identifier already owned by another artifact: %w", err)
	}
	return err
}

func (r *ArtifactRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
