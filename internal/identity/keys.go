// Package identity decides whether an incoming artifact is new, unchanged,
// renamed or an update of something already stored.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// Keys are the identity hashes of one candidate. Legacy is empty unless an
// older identity scheme may have been used for the same artifact.
type Keys struct {
	Primary string
	Legacy  string
}

func sum(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(h[:])
}

// PrimaryHash derives the identity hash for an artifact of docType keyed by
// key within scope.
func PrimaryHash(docType, key, scope string) string {
	return sum(docType, key, scope)
}

// LegacyHash is the filename-based identity used before stable file ids.
func LegacyHash(docType, filename, scope string) string {
	return sum(docType, filename, scope)
}

// ContentHash hashes the rendered content of an artifact within scope.
func ContentHash(scope, content string) string {
	return sum(scope, content)
}

// PayloadHash hashes the canonical records of a parse result. Record order
// does not matter, so the same transactions exported twice in a different
// order hash identically.
func PayloadHash(r *domain.ParseResult) string {
	if r == nil {
		return sum("payload")
	}
	var lines []string
	for _, t := range r.Transactions {
		lines = append(lines, fmt.Sprintf("t|%s|%s|%s|%s|%s",
			t.Date.Format("2006-01-02"), strings.TrimSpace(t.Description), t.Amount.String(), t.Kind, t.AccountName))
	}
	for _, h := range r.Holdings {
		lines = append(lines, fmt.Sprintf("h|%s|%s|%s|%s",
			strings.ToUpper(h.Symbol), h.Quantity.String(), h.MarketValue.String(), h.AccountName))
	}
	for _, it := range r.InvestmentTransactions {
		lines = append(lines, fmt.Sprintf("i|%s|%s|%s|%s|%s",
			it.Date.Format("2006-01-02"), strings.ToUpper(it.Symbol), it.Kind, it.Quantity.String(), it.Amount.String()))
	}
	for _, b := range r.Balances {
		lines = append(lines, fmt.Sprintf("b|%s|%s|%s",
			b.AccountName, b.Date.Format("2006-01-02"), b.Balance.String()))
	}
	sort.Strings(lines)
	return sum(append([]string{"payload"}, lines...)...)
}

// Keys derives the identity of c. A statement import with records is keyed
// by its payload so the same transactions arriving from another source are
// recognised. Otherwise an external file id wins over the filename, and the
// filename hash is kept as the legacy key for migration.
func (c Candidate) Keys() Keys {
	if c.Statement && c.Payload != nil && !c.Payload.Empty() {
		return Keys{Primary: PrimaryHash(c.DocumentType, "payload:"+PayloadHash(c.Payload), c.Scope)}
	}
	if c.FileID != "" {
		k := Keys{Primary: PrimaryHash(c.DocumentType, c.FileID, c.Scope)}
		if c.Filename != "" {
			k.Legacy = LegacyHash(c.DocumentType, c.Filename, c.Scope)
		}
		return k
	}
	return Keys{Primary: PrimaryHash(c.DocumentType, c.Filename, c.Scope)}
}
