// Package render writes canonical Markdown for parsed records and reads it
// back. The line formats are a contract with downstream text search, so
// everything rendered here must parse with the patterns in this package.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// TransactionLine matches "- **2024-01-15** - Netflix: -$15.99 (purchase)".
var TransactionLine = regexp.MustCompile(`(?m)^-\s+\*\*(\d{4}-\d{2}-\d{2})\*\*\s+-\s+([^:\n]+):\s+([+-])\$([\d,]+\.\d{2})\s+\(([^)\n]+)\)[ \t]*$`)

var textCleaner = strings.NewReplacer(":", " -", "(", "[", ")", "]", "\r\n", " ", "\n", " ", "\r", " ", "*", "")

// SanitizeText makes free text safe inside a rendered line.
func SanitizeText(s string) string {
	s = strings.Join(strings.Fields(textCleaner.Replace(s)), " ")
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatTransactionLine renders one transaction.
func FormatTransactionLine(t domain.BankTransaction) string {
	kind := t.Kind
	if kind == "" {
		kind = domain.KindBySign(t.Amount)
	}
	return fmt.Sprintf("- **%s** - %s: %s (%s)",
		t.Date.Format("2006-01-02"), SanitizeText(t.Description), domain.SignedUSD(t.Amount), kind)
}

// Period describes the span of txns: "2024-03" for a single month,
// otherwise "2024-01-05 to 2024-03-28".
func Period(txns []domain.BankTransaction) string {
	if len(txns) == 0 {
		return ""
	}
	first, last := txns[0].Date, txns[0].Date
	for _, t := range txns[1:] {
		if t.Date.Before(first) {
			first = t.Date
		}
		if t.Date.After(last) {
			last = t.Date
		}
	}
	if first.Year() == last.Year() && first.Month() == last.Month() {
		return first.Format("2006-01")
	}
	return first.Format("2006-01-02") + " to " + last.Format("2006-01-02")
}

// RenderTransactions writes a transaction document, oldest first.
func RenderTransactions(title, period string, txns []domain.BankTransaction) string {
	sorted := make([]domain.BankTransaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	spent, received := decimal.Zero, decimal.Zero
	for _, t := range sorted {
		if t.Amount.IsNegative() {
			spent = spent.Add(t.Amount.Abs())
		} else {
			received = received.Add(t.Amount)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Transactions for %s\n\n", SanitizeText(title), period)
	fmt.Fprintf(&b, "**Total Transactions:** %d\n\n", len(sorted))
	fmt.Fprintf(&b, "**Total Spent:** %s\n", domain.FormatUSD(spent))
	fmt.Fprintf(&b, "**Total Received:** %s\n\n", domain.FormatUSD(received))
	b.WriteString("## Transactions\n\n")
	for _, t := range sorted {
		b.WriteString(FormatTransactionLine(t))
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseTransactions recovers date, description, signed amount and kind
// from every transaction line in md.
func ParseTransactions(md string) []domain.BankTransaction {
	var out []domain.BankTransaction
	for _, m := range TransactionLine.FindAllStringSubmatch(md, -1) {
		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		amount := normalize.ParseAmount(m[4])
		if m[3] == "-" {
			amount = amount.Neg()
		}
		kind, ok := domain.ParseTransactionKind(m[5])
		if !ok {
			kind = domain.KindBySign(amount)
		}
		out = append(out, domain.BankTransaction{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
			Kind:        kind,
		})
	}
	return out
}
