package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/pii"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// ValidateParseResult reports records that parsed but look wrong. The
// records are kept; the warnings travel with the parsing run.
func ValidateParseResult(res *domain.ParseResult) []string {
	var warnings []string

	for i, t := range res.Transactions {
		switch {
		case t.Date.IsZero():
			warnings = append(warnings, fmt.Sprintf("transaction %d: missing date", i+1))
		case strings.TrimSpace(t.Description) == "":
			warnings = append(warnings, fmt.Sprintf("transaction %d: empty description", i+1))
		case t.Amount.IsZero():
			warnings = append(warnings, fmt.Sprintf("transaction %d: zero amount", i+1))
		}
	}

	for i, h := range res.Holdings {
		switch {
		case h.Symbol == "" && h.Description == "":
			warnings = append(warnings, fmt.Sprintf("holding %d: no symbol or description", i+1))
		case h.Quantity.IsNegative():
			warnings = append(warnings, fmt.Sprintf("holding %s: negative quantity %s", label(h), h.Quantity))
		case h.MarketValue.IsNegative():
			warnings = append(warnings, fmt.Sprintf("holding %s: negative market value %s", label(h), h.MarketValue))
		}
	}

	for i, b := range res.Balances {
		if b.Date.IsZero() {
			warnings = append(warnings, fmt.Sprintf("balance %d: missing date", i+1))
		}
	}
	return warnings
}

func label(h domain.InvestmentHolding) string {
	if h.Symbol != "" {
		return h.Symbol
	}
	return h.Description
}

// ValidateTaxForm lists the fields whose confidence is below the review
// threshold.
func ValidateTaxForm(res *taxform.ExtractionResult) []string {
	ok, low := pii.ValidateConfidence(res.Confidence, taxform.DefaultThreshold)
	if ok {
		return nil
	}
	return []string{fmt.Sprintf("low confidence fields: %s", strings.Join(low, ", "))}
}
