package pipeline

import (
	"context"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/identity"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/parsers"
	"github.com/dvloznov/finance-ingest/internal/source"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// ParserRegistry detects a file's format and parses it.
// *parsers.Registry satisfies it.
type ParserRegistry interface {
	Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, parsers.Kind, error)
}

// TaxExtractor runs the tiered tax-form extraction. *taxform.Extractor
// satisfies it.
type TaxExtractor interface {
	Extract(ctx context.Context, pdf []byte, form taxform.FormType) (*taxform.ExtractionResult, error)
}

// IdentityResolver is satisfied by *identity.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, c identity.Candidate) (*identity.Resolution, error)
}

// Ledger records parsing runs and raw model outputs.
// *infra.Repository satisfies it.
type Ledger interface {
	StartParsingRun(ctx context.Context, start infra.RunStart) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID, stage string, parseErr error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, out infra.RunOutcome) error
	MarkParsingRunsAsSuperseded(ctx context.Context, documentID, currentRunID string) error
	InsertModelOutput(ctx context.Context, row *infra.ModelOutputRow) error
}

// Exporter writes canonical rows for downstream analytics.
// *infra.Repository satisfies it.
type Exporter interface {
	InsertDocument(ctx context.Context, row *infra.DocumentRow) error
	InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error
	InsertHoldings(ctx context.Context, rows []*infra.HoldingRow) error
	InsertInvestmentTransactions(ctx context.Context, rows []*infra.InvestmentTransactionRow) error
	InsertBalances(ctx context.Context, rows []*infra.BalanceRow) error
	InsertTaxForm(ctx context.Context, row *infra.TaxFormRow) error
	DeleteDocumentRows(ctx context.Context, documentID string) error
}

// Deps are the collaborators of an ingest. Source, Parsers and Identity are
// required. Without TaxForms every PDF is parsed as a statement; without
// Ledger or Exporter nothing is recorded or exported.
type Deps struct {
	Source   source.Fetcher
	Parsers  ParserRegistry
	TaxForms TaxExtractor
	// TaxText classifies PDFs as tax forms before parsing. Optional.
	TaxText  parsers.TextExtractor
	Identity IdentityResolver
	Ledger   Ledger
	Exporter Exporter
}

var (
	_ ParserRegistry   = (*parsers.Registry)(nil)
	_ TaxExtractor     = (*taxform.Extractor)(nil)
	_ IdentityResolver = (*identity.Resolver)(nil)
	_ Ledger           = (*infra.Repository)(nil)
	_ Exporter         = (*infra.Repository)(nil)
)
