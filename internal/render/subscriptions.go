package render

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/recurring"
)

// RenderSubscriptions writes detected recurring charges as a report.
func RenderSubscriptions(charges []recurring.Charge) string {
	s := recurring.Summarize(charges)

	var b strings.Builder
	b.WriteString("# Recurring Charges\n\n")
	fmt.Fprintf(&b, "**Active:** %d of %d\n", s.ActiveCount, s.Count)
	fmt.Fprintf(&b, "**Monthly Cost:** %s\n", domain.FormatUSD(s.TotalMonthlyCost))
	fmt.Fprintf(&b, "**Annual Cost:** %s\n\n", domain.FormatUSD(s.TotalAnnualCost))

	b.WriteString("## Charges\n\n")
	for _, c := range charges {
		fmt.Fprintf(&b, "- **%s** - %s %s (%s, %d charges, last %s)\n",
			SanitizeText(c.Merchant), domain.FormatUSD(c.Amount), c.Frequency, c.Status,
			c.ChargeCount, c.LastCharge.Format("2006-01-02"))
	}

	if recs := recurring.Recommendations(charges); len(recs) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, r := range recs {
			b.WriteString("- " + r + "\n")
		}
	}
	return b.String()
}
