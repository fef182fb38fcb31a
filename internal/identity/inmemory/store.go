// Package inmemory provides a mutex-guarded identity.Store for tests and
// single-process CLI runs.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/identity"
)

// Store keeps artifacts in maps. The identifier index is unique, the content
// index keeps the first artifact stored for a hash.
type Store struct {
	mu           sync.RWMutex
	artifacts    map[uuid.UUID]*identity.Artifact
	byIdentifier map[string]uuid.UUID
	byContent    map[string]uuid.UUID
	now          func() time.Time
}

var _ identity.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		artifacts:    make(map[uuid.UUID]*identity.Artifact),
		byIdentifier: make(map[string]uuid.UUID),
		byContent:    make(map[string]uuid.UUID),
		now:          time.Now,
	}
}

func (s *Store) FindByIdentifier(ctx context.Context, hash string) (*identity.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentifier[hash]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return clone(s.artifacts[id]), nil
}

func (s *Store) FindByContentHash(ctx context.Context, hash string) (*identity.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byContent[hash]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return clone(s.artifacts[id]), nil
}

func (s *Store) Upsert(ctx context.Context, a *identity.Artifact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byIdentifier[a.IdentifierHash]; exists {
		return false, nil
	}
	if _, exists := s.artifacts[a.ID]; exists {
		return false, fmt.Errorf("Upsert: artifact id %s already used", a.ID)
	}
	s.artifacts[a.ID] = clone(a)
	s.byIdentifier[a.IdentifierHash] = a.ID
	if _, ok := s.byContent[a.ContentHash]; !ok {
		s.byContent[a.ContentHash] = a.ID
	}
	return true, nil
}

func (s *Store) UpdateContent(ctx context.Context, id uuid.UUID, contentHash, content string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return identity.ErrNotFound
	}
	if s.byContent[a.ContentHash] == id {
		delete(s.byContent, a.ContentHash)
	}
	a.ContentHash = contentHash
	a.Content = content
	a.Metadata = copyMap(metadata)
	a.UpdatedAt = s.now()
	if _, ok := s.byContent[contentHash]; !ok {
		s.byContent[contentHash] = id
	}
	return nil
}

func (s *Store) UpdateMetadata(ctx context.Context, id uuid.UUID, title string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return identity.ErrNotFound
	}
	a.Title = title
	a.Metadata = copyMap(metadata)
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) MigrateIdentifier(ctx context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return identity.ErrNotFound
	}
	if other, taken := s.byIdentifier[hash]; taken && other != id {
		return fmt.Errorf("MigrateIdentifier: identifier already owned by %s", other)
	}
	delete(s.byIdentifier, a.IdentifierHash)
	a.IdentifierHash = hash
	s.byIdentifier[hash] = id
	return nil
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}

// List returns copies of every stored artifact.
func (s *Store) List() []*identity.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*identity.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, clone(a))
	}
	return out
}

func clone(a *identity.Artifact) *identity.Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Metadata = copyMap(a.Metadata)
	return &c
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
