package identity_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/identity"
	"github.com/dvloznov/finance-ingest/internal/identity/inmemory"
)

func candidate(filename, content string) identity.Candidate {
	return identity.Candidate{
		DocumentType: "FILE",
		Scope:        "user-1",
		Filename:     filename,
		Title:        filename,
		Content:      content,
	}
}

func TestResolve_IdempotentIngest(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	first, err := r.Resolve(ctx, candidate("chase.csv", "# Chase"))
	if err != nil || first.Outcome != identity.OutcomeCreated {
		t.Fatalf("first = %+v, err = %v", first, err)
	}
	second, err := r.Resolve(ctx, candidate("chase.csv", "# Chase"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != identity.OutcomeUnchanged || second.MatchedBy != identity.MatchPrimary || !second.Duplicate() {
		t.Errorf("second = %+v", second)
	}
	if second.Artifact.ID != first.Artifact.ID || store.Len() != 1 {
		t.Errorf("expected one artifact, got %d", store.Len())
	}
}

func TestResolve_CrossSourceDuplicate(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, candidate("upload.csv", "# Same")); err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve(ctx, candidate("drive-copy.csv", "# Same"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != identity.OutcomeUnchanged || res.MatchedBy != identity.MatchContent {
		t.Errorf("res = %+v", res)
	}
	if res.Artifact.Title != "upload.csv" {
		t.Errorf("content match must keep the original title, got %q", res.Artifact.Title)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d", store.Len())
	}
}

func TestResolve_UpdateInPlace(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	first, _ := r.Resolve(ctx, candidate("chase.csv", "# v1"))
	res, err := r.Resolve(ctx, candidate("chase.csv", "# v2"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != identity.OutcomeUpdated || res.Artifact.ID != first.Artifact.ID {
		t.Errorf("res = %+v", res)
	}
	stored, _ := store.FindByIdentifier(ctx, first.Artifact.IdentifierHash)
	if stored.Content != "# v2" || stored.ContentHash != identity.ContentHash("user-1", "# v2") {
		t.Errorf("stored = %+v", stored)
	}
}

func TestResolve_RenameOnly(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	c := candidate("statement.pdf", "# March")
	c.FileID = "gen-42"
	if _, err := r.Resolve(ctx, c); err != nil {
		t.Fatal(err)
	}

	c.Filename = "march-statement.pdf"
	c.Title = "march-statement.pdf"
	res, err := r.Resolve(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != identity.OutcomeRenamed || res.Artifact.Title != "march-statement.pdf" {
		t.Errorf("res = %+v", res)
	}
}

func TestResolve_LegacyMigration(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	old, err := r.Resolve(ctx, candidate("w2.pdf", "# W2"))
	if err != nil {
		t.Fatal(err)
	}

	c := candidate("w2.pdf", "# W2")
	c.FileID = "gen-7"
	res, err := r.Resolve(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if res.MatchedBy != identity.MatchLegacy || !res.Migrated || res.Outcome != identity.OutcomeUnchanged {
		t.Errorf("res = %+v", res)
	}
	if res.Artifact.ID != old.Artifact.ID {
		t.Error("migration must keep the artifact")
	}
	if _, err := store.FindByIdentifier(ctx, c.Keys().Primary); err != nil {
		t.Errorf("artifact not reachable by primary identity: %v", err)
	}
}

func TestResolve_StatementPayloadIdentity(t *testing.T) {
	store := inmemory.NewStore()
	r := identity.NewResolver(store)
	ctx := context.Background()

	payload := func() *domain.ParseResult {
		p := domain.NewParseResult()
		p.Transactions = []domain.BankTransaction{
			{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Description: "NETFLIX", Amount: decimal.RequireFromString("-15.99"), Kind: domain.KindPurchase},
			{Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Description: "PAYROLL", Amount: decimal.RequireFromString("2000"), Kind: domain.KindDeposit},
		}
		return p
	}

	a := candidate("export-a.csv", "# Export A")
	a.Statement, a.Payload = true, payload()
	b := candidate("export-b.ofx", "# Export B")
	b.Statement, b.Payload = true, payload()
	b.Payload.Transactions[0], b.Payload.Transactions[1] = b.Payload.Transactions[1], b.Payload.Transactions[0]

	if _, err := r.Resolve(ctx, a); err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.MatchedBy != identity.MatchPrimary || store.Len() != 1 {
		t.Errorf("same transactions must resolve to one artifact: %+v, len %d", res, store.Len())
	}
}

func TestPayloadHash_OrderIndependent(t *testing.T) {
	t1 := domain.BankTransaction{Description: "A", Amount: decimal.RequireFromString("1.50")}
	t2 := domain.BankTransaction{Description: "B", Amount: decimal.RequireFromString("-2")}
	p1 := &domain.ParseResult{Transactions: []domain.BankTransaction{t1, t2}}
	p2 := &domain.ParseResult{Transactions: []domain.BankTransaction{t2, t1}}
	if identity.PayloadHash(p1) != identity.PayloadHash(p2) {
		t.Error("payload hash must not depend on record order")
	}
	p3 := &domain.ParseResult{Transactions: []domain.BankTransaction{t1}}
	if identity.PayloadHash(p1) == identity.PayloadHash(p3) {
		t.Error("different payloads must hash differently")
	}
}

// raceStore loses the first insert to a concurrent writer.
type raceStore struct {
	identity.Store
	FindByIdentifierFunc func(ctx context.Context, hash string) (*identity.Artifact, error)
	UpsertFunc           func(ctx context.Context, a *identity.Artifact) (bool, error)
}

func (s *raceStore) FindByIdentifier(ctx context.Context, hash string) (*identity.Artifact, error) {
	return s.FindByIdentifierFunc(ctx, hash)
}

func (s *raceStore) FindByContentHash(ctx context.Context, hash string) (*identity.Artifact, error) {
	return nil, identity.ErrNotFound
}

func (s *raceStore) Upsert(ctx context.Context, a *identity.Artifact) (bool, error) {
	return s.UpsertFunc(ctx, a)
}

func TestResolve_LostInsertRace(t *testing.T) {
	c := candidate("chase.csv", "# Chase")
	winner := &identity.Artifact{ID: uuid.New(), IdentifierHash: c.Keys().Primary, ContentHash: identity.ContentHash(c.Scope, c.Content), Title: c.Title}

	lookups := 0
	store := &raceStore{
		FindByIdentifierFunc: func(ctx context.Context, hash string) (*identity.Artifact, error) {
			lookups++
			if lookups == 1 {
				return nil, identity.ErrNotFound
			}
			return winner, nil
		},
		UpsertFunc: func(ctx context.Context, a *identity.Artifact) (bool, error) {
			return false, nil
		},
	}

	res, err := identity.NewResolver(store).Resolve(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if res.Artifact.ID != winner.ID || res.Outcome != identity.OutcomeUnchanged {
		t.Errorf("res = %+v", res)
	}
}

func TestResolve_PersistentConflict(t *testing.T) {
	upserts := 0
	store := &raceStore{
		FindByIdentifierFunc: func(ctx context.Context, hash string) (*identity.Artifact, error) {
			return nil, identity.ErrNotFound
		},
		UpsertFunc: func(ctx context.Context, a *identity.Artifact) (bool, error) {
			upserts++
			return false, nil
		},
	}
	_, err := identity.NewResolver(store).Resolve(context.Background(), candidate("x.csv", "x"))
	if err == nil || !strings.Contains(err.Error(), "conflicting") {
		t.Errorf("expected conflict error, got %v", err)
	}
	if upserts != 3 {
		t.Errorf("upserts = %d, want 3", upserts)
	}
}

func TestResolve_StoreError(t *testing.T) {
	boom := errors.New("connection lost")
	store := &raceStore{
		FindByIdentifierFunc: func(ctx context.Context, hash string) (*identity.Artifact, error) {
			return nil, boom
		},
	}
	if _, err := identity.NewResolver(store).Resolve(context.Background(), candidate("x.csv", "x")); !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
