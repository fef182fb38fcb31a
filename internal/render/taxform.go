package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// RenderTaxForm writes an extraction outcome for display: a heading with the
// document title, the canonical content and the tier trace.
func RenderTaxForm(title string, r *taxform.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Form %s - %s\n\n", formName(r), SanitizeText(title))
	writeTaxFormBody(&b, r)

	if len(r.Trace) > 0 {
		b.WriteString("\n## Extraction Trace\n\n")
		for _, a := range r.Trace {
			line := fmt.Sprintf("- **%s:** %.2f", a.Method, a.Confidence)
			if a.Error != "" {
				line += " - " + SanitizeText(a.Error)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// TaxFormContent renders only what the form says, so two copies of one
// form render identically whatever their file names. It uses storage-safe
// fields only: identifiers appear masked, hashes are omitted.
func TaxFormContent(r *taxform.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Form %s\n\n", formName(r))
	writeTaxFormBody(&b, r)
	return b.String()
}

func formName(r *taxform.ExtractionResult) string {
	if r.FormType == "" {
		return "Unknown"
	}
	return string(r.FormType)
}

func writeTaxFormBody(b *strings.Builder, r *taxform.ExtractionResult) {
	fmt.Fprintf(b, "**Extraction Method:** %s\n", r.Method)
	fmt.Fprintf(b, "**Confidence:** %.2f\n", r.Mean)
	fmt.Fprintf(b, "**Needs Review:** %s\n\n", yesNo(r.NeedsReview))

	fields := r.StorageFields()
	conf := r.StorageConfidence()
	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.HasSuffix(name, "_hash") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("## Fields\n\n")
	for _, name := range names {
		line := fmt.Sprintf("- **%s:** %s", name, formatFieldValue(fields[name]))
		if c, ok := conf[name]; ok {
			line += fmt.Sprintf(" (%.2f)", c)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func formatFieldValue(v any) string {
	switch x := v.(type) {
	case decimal.Decimal:
		return domain.FormatUSD(x)
	case *decimal.Decimal:
		if x == nil {
			return ""
		}
		return domain.FormatUSD(*x)
	case bool:
		return yesNo(x)
	case []taxform.Box12Code:
		parts := make([]string, 0, len(x))
		for _, c := range x {
			parts = append(parts, c.Code+" "+domain.FormatUSD(c.Amount))
		}
		return strings.Join(parts, "; ")
	case string:
		return strings.Join(strings.Fields(x), " ")
	default:
		return fmt.Sprint(x)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
