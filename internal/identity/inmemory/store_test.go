package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/identity"
)

func TestStore_UniqueIdentifier(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := &identity.Artifact{ID: uuid.New(), IdentifierHash: "id-1", ContentHash: "c-1", Metadata: map[string]string{"k": "v"}}
	inserted, err := s.Upsert(ctx, a)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	dup := &identity.Artifact{ID: uuid.New(), IdentifierHash: "id-1", ContentHash: "c-2"}
	inserted, err = s.Upsert(ctx, dup)
	if err != nil || inserted {
		t.Fatalf("duplicate identifier must not insert: inserted=%v err=%v", inserted, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}

	got, err := s.FindByContentHash(ctx, "c-1")
	if err != nil || got.ID != a.ID {
		t.Fatalf("FindByContentHash = %v, %v", got, err)
	}
	got.Metadata["k"] = "changed"
	again, _ := s.FindByIdentifier(ctx, "id-1")
	if again.Metadata["k"] != "v" {
		t.Error("returned artifacts must be copies")
	}
}

func TestStore_UpdateAndMigrate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := uuid.New()
	if _, err := s.Upsert(ctx, &identity.Artifact{ID: id, IdentifierHash: "old", ContentHash: "c-1"}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateContent(ctx, id, "c-2", "new content", nil); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if _, err := s.FindByContentHash(ctx, "c-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Error("stale content hash must be unindexed")
	}

	if err := s.MigrateIdentifier(ctx, id, "new"); err != nil {
		t.Fatalf("MigrateIdentifier: %v", err)
	}
	if _, err := s.FindByIdentifier(ctx, "old"); !errors.Is(err, identity.ErrNotFound) {
		t.Error("old identifier must be released")
	}
	if a, err := s.FindByIdentifier(ctx, "new"); err != nil || a.Content != "new content" {
		t.Errorf("FindByIdentifier(new) = %v, %v", a, err)
	}

	if err := s.UpdateMetadata(ctx, uuid.New(), "x", nil); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
