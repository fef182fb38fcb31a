package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// ErrNotFound is returned by Store lookups that match nothing.
var ErrNotFound = errors.New("artifact not found")

// maxResolveAttempts bounds re-resolution after losing an insert race.
const maxResolveAttempts = 3

// Artifact is one stored document.
type Artifact struct {
	ID             uuid.UUID
	DocumentType   string
	Scope          string
	Title          string
	IdentifierHash string
	ContentHash    string
	Content        string
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Candidate is an incoming artifact before resolution.
type Candidate struct {
	DocumentType string
	// Scope partitions identities, e.g. per user or workspace.
	Scope    string
	Filename string
	// FileID is a stable external id such as a GCS object generation.
	FileID  string
	Title   string
	Content string
	// Statement marks imports whose identity is their financial payload.
	Statement bool
	Payload   *domain.ParseResult
	Metadata  map[string]string
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRenamed   Outcome = "renamed"
)

// MatchedBy names the lookup that found an existing artifact.
type MatchedBy string

const (
	MatchNone    MatchedBy = ""
	MatchPrimary MatchedBy = "primary"
	MatchLegacy  MatchedBy = "legacy"
	MatchContent MatchedBy = "content"
)

// Resolution is the result of resolving one candidate.
type Resolution struct {
	Artifact  *Artifact
	Outcome   Outcome
	MatchedBy MatchedBy
	// Migrated is set when a legacy identity was moved to the primary hash.
	Migrated bool
}

// Duplicate reports whether the candidate's content was already stored. It
// is not an error.
func (r *Resolution) Duplicate() bool {
	return r.Outcome == OutcomeUnchanged || r.Outcome == OutcomeRenamed
}

// Store persists artifacts. IdentifierHash must be unique.
type Store interface {
	FindByIdentifier(ctx context.Context, hash string) (*Artifact, error)
	FindByContentHash(ctx context.Context, hash string) (*Artifact, error)
	// Upsert inserts a unless an artifact with the same IdentifierHash exists,
	// reporting whether it inserted.
	Upsert(ctx context.Context, a *Artifact) (bool, error)
	UpdateContent(ctx context.Context, id uuid.UUID, contentHash, content string, metadata map[string]string) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, title string, metadata map[string]string) error
	MigrateIdentifier(ctx context.Context, id uuid.UUID, hash string) error
}

// Resolver implements lookup-then-write identity resolution over a Store.
type Resolver struct {
	Store Store
	Now   func() time.Time
	NewID func() uuid.UUID
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store, Now: time.Now, NewID: uuid.New}
}

// Resolve looks c up by primary identity, then legacy identity, then content
// hash. A match with identical content is a no-op apart from a title change;
// a match with different content is updated in place. With no match a new
// artifact is inserted. Losing an insert race to a concurrent writer causes
// the lookup to be repeated.
func (r *Resolver) Resolve(ctx context.Context, c Candidate) (*Resolution, error) {
	log := logger.Component(ctx, "identity")

	keys := c.Keys()
	contentHash := ContentHash(c.Scope, c.Content)

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		existing, via, err := r.find(ctx, keys, contentHash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return r.reconcile(ctx, c, keys, contentHash, existing, via)
		}

		a := r.newArtifact(c, keys.Primary, contentHash)
		inserted, err := r.Store.Upsert(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("Resolve: insert artifact: %w", err)
		}
		if inserted {
			log.Info().Str("artifact_id", a.ID.String()).Str("title", a.Title).Msg("artifact created")
			return &Resolution{Artifact: a, Outcome: OutcomeCreated}, nil
		}
		log.Warn().Int("attempt", attempt).Str("identifier_hash", keys.Primary).Msg("identity conflict on insert, resolving again")
	}
	return nil, fmt.Errorf("Resolve: identity %s still conflicting after %d attempts", keys.Primary, maxResolveAttempts)
}

func (r *Resolver) find(ctx context.Context, keys Keys, contentHash string) (*Artifact, MatchedBy, error) {
	a, err := r.Store.FindByIdentifier(ctx, keys.Primary)
	if err == nil {
		return a, MatchPrimary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, MatchNone, fmt.Errorf("Resolve: lookup primary identity: %w", err)
	}

	if keys.Legacy != "" {
		a, err = r.Store.FindByIdentifier(ctx, keys.Legacy)
		if err == nil {
			return a, MatchLegacy, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, MatchNone, fmt.Errorf("Resolve: lookup legacy identity: %w", err)
		}
	}

	a, err = r.Store.FindByContentHash(ctx, contentHash)
	if err == nil {
		return a, MatchContent, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, MatchNone, fmt.Errorf("Resolve: lookup content hash: %w", err)
	}
	return nil, MatchNone, nil
}

func (r *Resolver) reconcile(ctx context.Context, c Candidate, keys Keys, contentHash string, existing *Artifact, via MatchedBy) (*Resolution, error) {
	log := logger.Component(ctx, "identity").With().Str("artifact_id", existing.ID.String()).Str("matched_by", string(via)).Logger()
	res := &Resolution{Artifact: existing, MatchedBy: via}

	if via == MatchLegacy {
		if err := r.Store.MigrateIdentifier(ctx, existing.ID, keys.Primary); err != nil {
			return nil, fmt.Errorf("Resolve: migrate identity: %w", err)
		}
		existing.IdentifierHash = keys.Primary
		res.Migrated = true
		log.Info().Msg("migrated artifact to primary identity")
	}

	if existing.ContentHash == contentHash {
		// A cross-source content match keeps the original artifact's name.
		if via != MatchContent && c.Title != "" && c.Title != existing.Title {
			meta := mergeMetadata(existing.Metadata, c.Metadata)
			if err := r.Store.UpdateMetadata(ctx, existing.ID, c.Title, meta); err != nil {
				return nil, fmt.Errorf("Resolve: update metadata: %w", err)
			}
			log.Info().Str("old_title", existing.Title).Str("new_title", c.Title).Msg("artifact renamed")
			existing.Title = c.Title
			existing.Metadata = meta
			existing.UpdatedAt = r.Now()
			res.Outcome = OutcomeRenamed
			return res, nil
		}
		log.Info().Msg("artifact unchanged")
		res.Outcome = OutcomeUnchanged
		return res, nil
	}

	meta := mergeMetadata(existing.Metadata, c.Metadata)
	if err := r.Store.UpdateContent(ctx, existing.ID, contentHash, c.Content, meta); err != nil {
		return nil, fmt.Errorf("Resolve: update content: %w", err)
	}
	existing.ContentHash = contentHash
	existing.Content = c.Content
	existing.Metadata = meta
	existing.UpdatedAt = r.Now()
	log.Info().Msg("artifact content updated")
	res.Outcome = OutcomeUpdated
	return res, nil
}

func (r *Resolver) newArtifact(c Candidate, identifier, contentHash string) *Artifact {
	now := r.Now()
	title := c.Title
	if title == "" {
		title = c.Filename
	}
	return &Artifact{
		ID:             r.NewID(),
		DocumentType:   c.DocumentType,
		Scope:          c.Scope,
		Title:          title,
		IdentifierHash: identifier,
		ContentHash:    contentHash,
		Content:        c.Content,
		Metadata:       mergeMetadata(nil, c.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func mergeMetadata(base, update map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
