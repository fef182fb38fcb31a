// Package schemainfer maps unknown CSV layouts onto canonical records without
// sending real values outside the process. Only headers and type tags reach
// the reasoning backend; the returned column mapping is applied locally.
package schemainfer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxSamples is how many data rows are sanitized into a request.
const MaxSamples = 3

// Type tags that replace sampled values.
const (
	TagEmpty   = "[EMPTY]"
	TagDecimal = "[DECIMAL]"
	TagInteger = "[INTEGER]"
	TagSymbol  = "[SYMBOL]"
	TagText    = "[TEXT]"
)

var (
	numericCleaner = strings.NewReplacer("$", "", ",", "", "(", "-", ")", "")

	datePatterns = []struct {
		re  *regexp.Regexp
		tag string
	}{
		{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), "[DATE:MM/DD/YYYY]"},
		{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "[DATE:YYYY-MM-DD]"},
		{regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`), "[DATE:MM-DD-YYYY]"},
		{regexp.MustCompile(`^[A-Za-z]{3} \d{1,2}, \d{4}$`), "[DATE:Mon DD, YYYY]"},
	}

	symbolPattern = regexp.MustCompile(`^[A-Z]{2,5}$`)
)

// Sanitize replaces a value with its type tag.
func Sanitize(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return TagEmpty
	}

	cleaned := strings.TrimSpace(numericCleaner.Replace(v))
	if _, err := decimal.NewFromString(cleaned); err == nil {
		if strings.Contains(cleaned, ".") {
			return TagDecimal
		}
		return TagInteger
	}

	for _, p := range datePatterns {
		if p.re.MatchString(v) {
			return p.tag
		}
	}
	if symbolPattern.MatchString(v) {
		return TagSymbol
	}
	return TagText
}

// Request is everything the reasoning backend is allowed to see.
type Request struct {
	Headers []string
	Samples []map[string]string
	// RowCount is the number of data rows, reported for logging only.
	RowCount int
}

// BuildRequest sanitizes up to MaxSamples rows keyed by header.
func BuildRequest(headers []string, rows [][]string) Request {
	req := Request{Headers: headers, RowCount: len(rows)}
	for i := 0; i < len(rows) && i < MaxSamples; i++ {
		sample := make(map[string]string, len(headers))
		for j, h := range headers {
			v := ""
			if j < len(rows[i]) {
				v = rows[i][j]
			}
			sample[h] = Sanitize(v)
		}
		req.Samples = append(req.Samples, sample)
	}
	return req
}

// Prompt renders the structural question asked of the backend.
func (r Request) Prompt() string {
	headers, _ := json.Marshal(r.Headers)
	samples, _ := json.MarshalIndent(r.Samples, "", "  ")

	var sb strings.Builder
	sb.WriteString("You are analyzing the structure of a financial CSV file. Determine the file type and return a SCHEMA MAPPING. Do not extract data.\n\n")
	sb.WriteString("Sample values are masked with type indicators such as [DECIMAL], [INTEGER], [TEXT], [DATE:format], [SYMBOL] and [EMPTY].\n\n")
	fmt.Fprintf(&sb, "CSV Headers: %s\n\n", headers)
	fmt.Fprintf(&sb, "Sanitized Sample Rows:\n%s\n\n", samples)
	sb.WriteString(`STEP 1: Determine the file type.
- Headers such as "Transaction Type", "Bought", "Sold", "Payment", "Purchase" or transaction descriptions mean "transactions".
- Headers such as "Current Value", "Market Value", "Shares", "Position" without transaction types mean "holdings".

STEP 2: Map columns to fields.

For "transactions":
- date: {"column": "<column>", "format": "MM/DD/YYYY|YYYY-MM-DD|MM-DD-YYYY|DD/MM/YYYY"}
- description: {"column": "<column>"}
- amount: {"column": "<column>", "sign_convention": "negative_for_debits|positive_for_debits"}
- transaction_type: {"column": "<column if present>", "default": "DEBIT"}
- category: {"column": "<column if present>"}
- merchant: {"column": "<column if present>"}

For "holdings":
- symbol: {"column": "<column>"}
- quantity: {"column": "<column>"}
- price: {"column": "<column if present>"}
- market_value: {"column": "<column if present>"}
- cost_basis: {"column": "<column if present>"} or {"calculation": "market_value - gain_loss", "uses_columns": ["<market value column>", "<gain/loss column>"]}
- gain_loss: {"column": "<column if present>"}
- description: {"column": "<column if present>"}

Return ONLY JSON in this shape:
{"file_type": "holdings", "schema": {"symbol": {"column": "Symbol"}, "quantity": {"column": "Quantity"}}}
`)
	return sb.String()
}
