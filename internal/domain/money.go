package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders the absolute value of d as dollars with thousands
// separators, e.g. "$1,234.56". Callers add the sign.
func FormatUSD(d decimal.Decimal) string {
	cents := d.Abs().Shift(2).Round(0).IntPart()
	return money.New(cents, "USD").Display()
}

// SignedUSD renders d with an explicit sign: "+$10.00" or "-$15.99".
// Zero is rendered with a plus sign.
func SignedUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + FormatUSD(d)
	}
	return "+" + FormatUSD(d)
}
