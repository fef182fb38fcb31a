package parsers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// TextExtractor pulls plain text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

type pdfInstitution struct {
	name string
	re   *regexp.Regexp
}

func institutionRule(name string, keywords ...string) pdfInstitution {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return pdfInstitution{name, regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// Institution keywords, checked in order as whole words against the
// lowercased text.
var pdfInstitutions = []pdfInstitution{
	institutionRule("fidelity", "fidelity"),
	institutionRule("chase", "chase", "jpmorgan"),
	institutionRule("discover", "discover"),
	institutionRule("bank_of_america", "bank of america", "boa"),
	institutionRule("wells_fargo", "wells fargo"),
	institutionRule("capital_one", "capital one"),
	institutionRule("american_express", "american express", "amex"),
	institutionRule("citi", "citibank", "citi"),
}

// DetectInstitution returns the first institution whose keyword appears in
// text, or "".
func DetectInstitution(text string) string {
	lower := strings.ToLower(text)
	for _, inst := range pdfInstitutions {
		if inst.re.MatchString(lower) {
			return inst.name
		}
	}
	return ""
}

var (
	// 01/15 WHOLE FOODS MARKET -125.50
	chaseLine = regexp.MustCompile(`^\s*(\d{2}/\d{2})\s+(.+?)\s+(-?\$?[\d,]+\.\d{2})\s*$`)
	// 01/15/24 01/16/24 TARGET STORE -89.99 (transaction date, then post date)
	discoverLine = regexp.MustCompile(`^\s*(\d{2}/\d{2}(?:/\d{2,4})?)\s+\d{2}/\d{2}(?:/\d{2,4})?\s+(.+?)\s+(-?\$?[\d,]+\.\d{2})\s*$`)
	// 01/15/2024 Grocery Store (45.99)
	genericLine = regexp.MustCompile(`^\s*(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+(.+?)\s+(-?\(?-?\$?[\d,]+\.\d{2}\)?)\s*$`)

	statementYear = regexp.MustCompile(`\b(20\d{2})\b`)
)

var pdfHeaderWords = map[string]bool{
	"date": true, "description": true, "amount": true, "balance": true, "total": true,
}

var pdfSummaryPrefixes = []string{
	"beginning balance", "ending balance", "previous balance", "new balance",
	"total fees", "total interest", "total payments", "total purchases", "page ", "statement ",
}

// PDFParser parses transaction lines from PDF statement text.
type PDFParser struct {
	Text TextExtractor
	// Now supplies the fallback statement year. Defaults to time.Now.
	Now func() time.Time
}

func (p *PDFParser) Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	text, err := p.Text.ExtractText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("PDFParser: extracting text from %s: %w", filename, err)
	}
	return p.ParseText(ctx, text), nil
}

// ParseText parses already extracted statement text.
func (p *PDFParser) ParseText(ctx context.Context, text string) *domain.ParseResult {
	log := logger.Component(ctx, "parsers")

	res := domain.NewParseResult()
	institution := DetectInstitution(text)
	res.Metadata["institution"] = institution
	year := p.statementYear(text)

	var txs []domain.BankTransaction
	switch institution {
	case "chase":
		txs = parseStatementLines(log, text, chaseLine, year)
	case "discover":
		txs = parseStatementLines(log, text, discoverLine, year)
	}
	if len(txs) == 0 {
		txs = parseStatementLines(log, text, genericLine, year)
		res.Metadata["line_parser"] = "generic"
	}
	res.Transactions = txs

	log.Debug().Str("institution", institution).Int("transactions", len(txs)).Msg("parsed PDF statement text")
	return res
}

func (p *PDFParser) statementYear(text string) int {
	if m := statementYear.FindStringSubmatch(text); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return now().Year()
}

type lineKey struct {
	date   string
	desc   string
	amount string
}

// parseStatementLines applies re to each line. Amounts keep the sign printed
// on the statement: a leading minus or parentheses is an outflow.
func parseStatementLines(log zerolog.Logger, text string, re *regexp.Regexp, year int) []domain.BankTransaction {
	seen := make(map[lineKey]bool)
	var out []domain.BankTransaction

	for i, line := range strings.Split(text, "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.Join(strings.Fields(m[2]), " ")
		if len(desc) < 3 || isHeaderText(desc) {
			skipLine(log, i+1, "header or summary text")
			continue
		}
		amount := normalize.ParseAmount(m[3])
		if amount.IsZero() {
			skipLine(log, i+1, "zero amount")
			continue
		}

		date, err := statementDate(m[1], year)
		if err != nil {
			skipLine(log, i+1, err.Error())
			continue
		}

		key := lineKey{date.Format("2006-01-02"), desc, amount.String()}
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        classifyStatementLine(desc, amount),
			Raw:         map[string]string{"line": strings.TrimSpace(line)},
		})
	}
	return out
}

func skipLine(log zerolog.Logger, line int, reason string) {
	log.Debug().Int("line", line).Str("reason", reason).Msg("skipping PDF statement line")
}

func classifyStatementLine(desc string, amount decimal.Decimal) domain.TransactionKind {
	kind := domain.ClassifyByKeywords(desc, amount)
	if kind == domain.KindDebit {
		return domain.KindPurchase
	}
	return kind
}

func statementDate(s string, year int) (time.Time, error) {
	if strings.Count(s, "/") == 1 {
		s = fmt.Sprintf("%s/%d", s, year)
	}
	return normalize.ParseDate(s)
}

func isHeaderText(desc string) bool {
	lower := strings.ToLower(desc)
	if pdfHeaderWords[lower] {
		return true
	}
	for _, p := range pdfSummaryPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
