package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// RenderInvestmentTransactions writes a brokerage activity document, oldest
// first. Rows are pipe separated, e.g. "- **2024-01-05** - BUY VTI |
// 2.0000 shares @ $240.00 | -$480.10 (buy)", which TransactionLine does not
// match.
func RenderInvestmentTransactions(title string, txns []domain.InvestmentTransaction) string {
	sorted := make([]domain.InvestmentTransaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	net, fees := decimal.Zero, decimal.Zero
	for _, t := range sorted {
		net = net.Add(t.Amount)
		fees = fees.Add(t.Fees)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Investment Activity\n\n", SanitizeText(title))
	fmt.Fprintf(&b, "**Total Activities:** %d\n\n", len(sorted))
	fmt.Fprintf(&b, "**Net Amount:** %s\n", domain.SignedUSD(net))
	fmt.Fprintf(&b, "**Total Fees:** %s\n\n", domain.FormatUSD(fees))
	b.WriteString("## Activity\n\n")
	for _, t := range sorted {
		b.WriteString(formatActivityLine(t))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatActivityLine(t domain.InvestmentTransaction) string {
	desc := t.Description
	if strings.TrimSpace(desc) == "" {
		desc = string(t.Kind)
	}
	label := SanitizeText(desc)
	if t.Symbol != "" {
		label += " " + SanitizeText(strings.ToUpper(t.Symbol))
	}
	line := fmt.Sprintf("- **%s** - %s |", t.Date.Format("2006-01-02"), label)
	if !t.Quantity.IsZero() {
		line += fmt.Sprintf(" %s shares @ %s |", t.Quantity.StringFixed(4), domain.FormatUSD(t.Price))
	}
	return fmt.Sprintf("%s %s (%s)", line, domain.SignedUSD(t.Amount), t.Kind)
}

// RenderBalances writes balance snapshots grouped by account, newest first
// within each account.
func RenderBalances(title string, balances []domain.AccountBalance) string {
	sorted := make([]domain.AccountBalance, len(balances))
	copy(sorted, balances)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AccountName != sorted[j].AccountName {
			return sorted[i].AccountName < sorted[j].AccountName
		}
		return sorted[i].Date.After(sorted[j].Date)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Balances\n\n", SanitizeText(title))
	fmt.Fprintf(&b, "**Total Snapshots:** %d\n\n", len(sorted))
	b.WriteString("## Balances\n\n")
	for _, s := range sorted {
		line := fmt.Sprintf("- **%s** - %s", s.Date.Format("2006-01-02"), SanitizeText(s.AccountName))
		if s.AccountType != "" {
			line += fmt.Sprintf(" [%s]", s.AccountType)
		}
		line += ": " + signedValue(s.Balance)
		if s.AvailableBalance != nil {
			line += " | available " + signedValue(*s.AvailableBalance)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
