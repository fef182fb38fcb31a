// Package normalize parses the loosely formatted amounts and dates found in
// bank exports.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountStripper = strings.NewReplacer("$", "", ",", "", " ", "", " ", "", "USD", "")

// ParseAmount converts strings like "$1,234.56", "(50.00)" or "-12" into a
// decimal. Anything unparseable yields zero; it never fails.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = amountStripper.Replace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Abs().Neg()
	}
	return d
}

// ParseQuantity parses share counts with the same rules as ParseAmount.
func ParseQuantity(s string) decimal.Decimal {
	return ParseAmount(s)
}

// ParsePercent parses "12.5%" or "(3.10%)" into a percentage value.
func ParsePercent(s string) decimal.Decimal {
	return ParseAmount(strings.ReplaceAll(s, "%", ""))
}

// OptionalAmount returns nil for blank input so callers can distinguish
// "absent" from zero.
func OptionalAmount(s string) *decimal.Decimal {
	if strings.TrimSpace(s) == "" || strings.TrimSpace(s) == "--" {
		return nil
	}
	d := ParseAmount(s)
	return &d
}
