package taxform

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var (
	moneyPattern = regexp.MustCompile(`\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})\b`)
	box12Pattern = regexp.MustCompile(`(?im)^\s*(?:box\s*)?12[a-d]\s+(?:code\s*)?([A-Z]{1,2})\s+\$?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})\b`)
)

// ExtractFields pulls the boxes of form out of text using the form's label
// patterns. Boxes that cannot be found are absent from the result; checkbox
// fields are always present.
func ExtractFields(form FormType, text string) map[string]any {
	fields := make(map[string]any)
	for _, spec := range Fields(form) {
		switch spec.Kind {
		case KindMoney:
			if v, ok := amountAfter(spec.Label, text); ok {
				fields[spec.Name] = v
			}
		case KindBool:
			fields[spec.Name] = spec.Label.MatchString(text)
		case KindCodes:
			if codes := box12(text); len(codes) > 0 {
				fields[spec.Name] = codes
			}
		case KindText:
			if v, ok := textValue(spec.Label, text); ok {
				fields[spec.Name] = v
			}
		}
	}
	return fields
}

// amountAfter returns the first amount that follows a label match on the same
// line, trying each label occurrence in turn.
func amountAfter(label *regexp.Regexp, text string) (decimal.Decimal, bool) {
	for _, loc := range label.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[:i]
		}
		if m := moneyPattern.FindStringSubmatch(rest); m != nil {
			return normalize.ParseAmount(m[1]), true
		}
	}
	return decimal.Zero, false
}

func textValue(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := m[0]
	if len(m) > 1 {
		v = m[1]
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func box12(text string) []Box12Code {
	var codes []Box12Code
	for _, m := range box12Pattern.FindAllStringSubmatch(text, -1) {
		codes = append(codes, Box12Code{
			Code:   strings.ToUpper(m[1]),
			Amount: normalize.ParseAmount(m[2]),
		})
	}
	return codes
}
