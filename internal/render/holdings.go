package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var (
	// SecurityBlock matches a "#### Name (TICKER)" heading and its bullets.
	SecurityBlock = regexp.MustCompile(`(?m)^#### (.+?)(?: \(([^)\n]+)\))?[ \t]*\n+((?:- .+\n?)+)`)
	quantityField = regexp.MustCompile(`\*\*Quantity:\*\* (-?[\d,]+(?:\.\d+)?) shares`)
	priceField    = regexp.MustCompile(`\*\*Price:\*\* \$([\d,]+(?:\.\d+)?) per share`)
	valueField    = regexp.MustCompile(`\*\*Value:\*\* ([+-]?)\$([\d,]+\.\d{2})`)
	gainField     = regexp.MustCompile(`\*\*Gain/Loss:\*\* ([+-])\$([\d,]+\.\d{2}) \(([+-]?[\d,.]+)%\)`)
)

// RenderHoldings writes a positions document. Quantities keep four decimal
// places and prices two.
func RenderHoldings(title string, holdings []domain.InvestmentHolding) string {
	reconciled := make([]domain.InvestmentHolding, len(holdings))
	total := decimal.Zero
	for i, h := range holdings {
		h.Reconcile()
		reconciled[i] = h
		total = total.Add(h.MarketValue)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Holdings\n\n", SanitizeText(title))
	fmt.Fprintf(&b, "**Total Positions:** %d\n\n", len(holdings))
	fmt.Fprintf(&b, "**Total Value:** %s\n\n", signedValue(total))
	b.WriteString("## Positions\n\n")
	for _, h := range reconciled {
		name := h.Description
		if strings.TrimSpace(name) == "" {
			name = h.Symbol
		}
		if h.Symbol != "" {
			fmt.Fprintf(&b, "#### %s (%s)\n\n", SanitizeText(name), SanitizeText(strings.ToUpper(h.Symbol)))
		} else {
			fmt.Fprintf(&b, "#### %s\n\n", SanitizeText(name))
		}
		fmt.Fprintf(&b, "- **Quantity:** %s shares\n", h.Quantity.StringFixed(4))
		fmt.Fprintf(&b, "- **Price:** %s per share\n", domain.FormatUSD(h.Price))
		fmt.Fprintf(&b, "- **Value:** %s\n", signedValue(h.MarketValue))
		if h.GainLoss != nil {
			pct := decimal.Zero
			if h.GainLossPercent != nil {
				pct = *h.GainLossPercent
			}
			sign := "+"
			if pct.IsNegative() {
				sign = ""
			}
			fmt.Fprintf(&b, "- **Gain/Loss:** %s (%s%s%%)\n", domain.SignedUSD(*h.GainLoss), sign, pct.StringFixed(2))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// negative market values only occur for short positions.
func signedValue(d decimal.Decimal) string {
	if d.IsNegative() {
		return domain.SignedUSD(d)
	}
	return domain.FormatUSD(d)
}

// ParseHoldings reads back every security block in md. Cost basis is
// derived from value minus gain/loss when the latter is present.
func ParseHoldings(md string) []domain.InvestmentHolding {
	var out []domain.InvestmentHolding
	for _, m := range SecurityBlock.FindAllStringSubmatch(md, -1) {
		body := m[3]
		h := domain.InvestmentHolding{
			Description: strings.TrimSpace(m[1]),
			Symbol:      strings.TrimSpace(m[2]),
		}
		if q := quantityField.FindStringSubmatch(body); q != nil {
			h.Quantity = normalize.ParseAmount(q[1])
		}
		if p := priceField.FindStringSubmatch(body); p != nil {
			h.Price = normalize.ParseAmount(p[1])
		}
		if v := valueField.FindStringSubmatch(body); v != nil {
			h.MarketValue = normalize.ParseAmount(v[2])
			if v[1] == "-" {
				h.MarketValue = h.MarketValue.Neg()
			}
		}
		if g := gainField.FindStringSubmatch(body); g != nil {
			gl := normalize.ParseAmount(g[2])
			if g[1] == "-" {
				gl = gl.Neg()
			}
			pct := normalize.ParseAmount(g[3])
			h.GainLoss = &gl
			h.GainLossPercent = &pct
			cb := h.MarketValue.Sub(gl)
			h.CostBasis = &cb
		}
		out = append(out, h)
	}
	return out
}
