// Package parsers turns raw statement files into canonical records. A format
// detector picks one Kind per file and the Registry dispatches to the parser
// registered for it.
package parsers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// Kind identifies one parser variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindOFX
	KindChaseBank
	KindChaseCredit
	KindFidelity
	KindDiscover
	KindGenericBank
	KindInferredCSV
	KindPDF
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindOFX:         "ofx",
	KindChaseBank:   "chase_bank",
	KindChaseCredit: "chase_credit",
	KindFidelity:    "fidelity",
	KindDiscover:    "discover",
	KindGenericBank: "generic_bank",
	KindInferredCSV: "inferred_csv",
	KindPDF:         "pdf",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parser converts one file into canonical records.
type Parser interface {
	Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error)

func (f ParserFunc) Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	return f(ctx, content, filename)
}

// Registry maps each Kind to its parser.
type Registry struct {
	parsers map[Kind]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Kind]Parser)}
}

// Register installs p for k, replacing any previous parser.
func (r *Registry) Register(k Kind, p Parser) {
	r.parsers[k] = p
}

// Lookup returns the parser for k.
func (r *Registry) Lookup(k Kind) (Parser, bool) {
	p, ok := r.parsers[k]
	return p, ok
}

// Parse detects the format of content and dispatches to the registered
// parser. The detected kind is returned even when parsing fails.
func (r *Registry) Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, Kind, error) {
	log := logger.Component(ctx, "parsers")

	kind, err := Detect(filename, content)
	if err != nil {
		return nil, KindUnknown, err
	}
	p, ok := r.parsers[kind]
	if !ok {
		return nil, kind, fmt.Errorf("no parser registered for %s: %w", kind, domain.ErrUnsupportedFormat)
	}

	log.Debug().Str("filename", filename).Str("parser_kind", kind.String()).Msg("dispatching to parser")

	res, err := p.Parse(ctx, content, filename)
	if err != nil {
		return nil, kind, fmt.Errorf("%s parser: %w", kind, err)
	}
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	res.Metadata["parser_kind"] = kind.String()
	res.Metadata["filename"] = filepath.Base(filename)

	log.Info().
		Str("filename", filename).
		Str("parser_kind", kind.String()).
		Int("transactions", len(res.Transactions)).
		Int("holdings", len(res.Holdings)).
		Int("investment_transactions", len(res.InvestmentTransactions)).
		Int("balances", len(res.Balances)).
		Msg("parsed file")

	return res, kind, nil
}

// Options configures the default registry.
type Options struct {
	// PDFText extracts text from PDF statements. PDF files are unsupported
	// when nil.
	PDFText TextExtractor
	// Inferred handles CSV layouts no institution parser recognizes.
	Inferred Parser
}

// NewDefaultRegistry registers every built-in parser.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(KindOFX, ParserFunc(ParseOFX))
	r.Register(KindChaseBank, ParserFunc(ParseChaseBank))
	r.Register(KindChaseCredit, ParserFunc(ParseChaseCredit))
	r.Register(KindFidelity, ParserFunc(ParseFidelity))
	r.Register(KindDiscover, ParserFunc(ParseDiscover))
	r.Register(KindGenericBank, ParserFunc(ParseGenericBank))
	if opts.Inferred != nil {
		r.Register(KindInferredCSV, opts.Inferred)
	}
	if opts.PDFText != nil {
		r.Register(KindPDF, &PDFParser{Text: opts.PDFText})
	}
	return r
}

// skipRow logs and discards a malformed row.
func skipRow(ctx context.Context, kind Kind, row int, err error) {
	log := logger.Component(ctx, "parsers")
	rowErr := &domain.MalformedRowError{Row: row, Err: err}
	log.Warn().Err(rowErr).Str("parser_kind", kind.String()).Int("row", row).Msg("skipping malformed row")
}

var errEmptyField = errors.New("required field is empty")

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", name, errEmptyField)
	}
	return nil
}
