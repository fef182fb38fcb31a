package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/identity"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/parsers"
	"github.com/dvloznov/finance-ingest/internal/pii"
	"github.com/dvloznov/finance-ingest/internal/render"
	"github.com/dvloznov/finance-ingest/internal/schemainfer"
	"github.com/dvloznov/finance-ingest/internal/source"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

const (
	schemaModelName = "schema_inference"
	taxModelName    = "taxform_extractor"
)

// FetchStep loads the document bytes.
type FetchStep struct {
	Source source.Fetcher
}

func (s *FetchStep) Name() string { return StageFetch }

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Source == nil {
		return errors.New("no document source configured")
	}
	obj, err := s.Source.Fetch(ctx, state.SourceURI)
	if err != nil {
		return err
	}
	state.Object = obj
	return nil
}

// DetectStep classifies the file and decides between statement parsing and
// tax-form extraction.
type DetectStep struct {
	TaxText    parsers.TextExtractor
	TaxEnabled bool
}

func (s *DetectStep) Name() string { return StageDetect }

func (s *DetectStep) Execute(ctx context.Context, state *PipelineState) error {
	kind, err := parsers.Detect(state.Filename(), state.Object.Data)
	if err != nil {
		return err
	}
	state.Kind = kind
	state.DocumentType = DocumentStatement

	if state.FormType != taxform.FormUnknown {
		if kind != parsers.KindPDF {
			return fmt.Errorf("tax form %s must be a PDF, got %s: %w", state.FormType, kind, domain.ErrUnsupportedFormat)
		}
		if !s.TaxEnabled {
			return errors.New("tax-form extraction is not configured")
		}
		state.DocumentType = DocumentTaxForm
		return nil
	}
	if kind != parsers.KindPDF || !s.TaxEnabled || s.TaxText == nil {
		return nil
	}

	text, err := s.TaxText.ExtractText(ctx, state.Object.Data)
	if err != nil {
		// The statement parser reports unreadable PDFs.
		log := logger.Component(ctx, "pipeline")
		log.Warn().Err(err).Msg("tax form classification skipped")
		return nil
	}
	if form := taxform.DetectFormType(text); form != taxform.FormUnknown {
		state.FormType = form
		state.DocumentType = DocumentTaxForm
	}
	return nil
}

// StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct {
	Ledger Ledger
}

func (s *StartParsingRunStep) Name() string { return StageRecord }

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Ledger == nil {
		return nil
	}
	parserName := state.Kind.String()
	if state.DocumentType == DocumentTaxForm {
		parserName = taxModelName
	}
	id, err := s.Ledger.StartParsingRun(ctx, infra.RunStart{
		SourceURI:    state.SourceURI,
		DocumentType: state.DocumentType,
		ParserName:   parserName,
	})
	if err != nil {
		return err
	}
	state.ParsingRunID = id
	return nil
}

// ParseStatementStep dispatches statements to the parser registry.
type ParseStatementStep struct {
	Parsers ParserRegistry
}

func (s *ParseStatementStep) Name() string { return StageParse }

func (s *ParseStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.DocumentType != DocumentStatement {
		return nil
	}
	res, kind, err := s.Parsers.Parse(ctx, state.Object.Data, state.Filename())
	if err != nil {
		return err
	}
	state.Kind = kind
	state.Result = res
	return nil
}

// ExtractTaxFormStep runs the tiered extractor on tax PDFs.
type ExtractTaxFormStep struct {
	Extractor TaxExtractor
}

func (s *ExtractTaxFormStep) Name() string { return StageTax }

func (s *ExtractTaxFormStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.DocumentType != DocumentTaxForm {
		return nil
	}
	res, err := s.Extractor.Extract(ctx, state.Object.Data, state.FormType)
	if err != nil {
		return err
	}
	state.TaxForm = res
	if res.FormType != taxform.FormUnknown {
		state.FormType = res.FormType
	}
	return nil
}

// ValidateStep collects warnings about suspicious records. It never fails.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return StageValidate }

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result != nil {
		state.Warnings = append(state.Warnings, ValidateParseResult(state.Result)...)
	}
	if state.TaxForm != nil {
		state.Warnings = append(state.Warnings, ValidateTaxForm(state.TaxForm)...)
	}
	if len(state.Warnings) > 0 {
		log := logger.Component(ctx, "pipeline")
		log.Warn().Strs("warnings", state.Warnings).Msg("ingest produced warnings")
	}
	return nil
}

// StoreModelOutputStep stores raw reasoning output in model_outputs: the
// inferred CSV schema or the tax-form extraction.
type StoreModelOutputStep struct {
	Ledger Ledger
}

func (s *StoreModelOutputStep) Name() string { return StageRecord }

func (s *StoreModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Ledger == nil {
		return nil
	}
	if state.Result != nil {
		if raw := state.Result.Metadata[schemainfer.MetaSchemaMapping]; raw != "" {
			row := &infra.ModelOutputRow{
				ParsingRunID:  state.ParsingRunID,
				ModelName:     schemaModelName,
				Method:        bigquerylib.NullString{StringVal: state.Result.Metadata[schemainfer.MetaSchemaSource], Valid: true},
				RawJSON:       bigquerylib.NullJSON{JSONVal: raw, Valid: true},
				ExtractedText: bigquerylib.NullString{StringVal: raw, Valid: true},
			}
			if err := s.Ledger.InsertModelOutput(ctx, row); err != nil {
				return err
			}
		}
	}
	if state.TaxForm != nil {
		raw, err := json.Marshal(state.TaxForm.StorageFields())
		if err != nil {
			return fmt.Errorf("StoreModelOutputStep: encoding fields: %w", err)
		}
		row := &infra.ModelOutputRow{
			ParsingRunID: state.ParsingRunID,
			ModelName:    taxModelName,
			Method:       bigquerylib.NullString{StringVal: state.TaxForm.Method, Valid: true},
			RawJSON:      bigquerylib.NullJSON{JSONVal: string(raw), Valid: true},
			Confidence:   bigquerylib.NullFloat64{Float64: pii.RoundConfidence(state.TaxForm.Mean), Valid: true},
			Notes:        bigquerylib.NullString{StringVal: traceNotes(state.TaxForm.Trace), Valid: true},
		}
		if err := s.Ledger.InsertModelOutput(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// traceNotes summarizes tier attempts as "method=confidence" pairs.
func traceNotes(trace []taxform.Attempt) string {
	parts := make([]string, 0, len(trace))
	for _, a := range trace {
		p := fmt.Sprintf("%s=%.2f", a.Method, a.Confidence)
		if a.Error != "" {
			p += " (error)"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// RenderStep produces the canonical markdown content of the document.
type RenderStep struct{}

func (s *RenderStep) Name() string { return StageRender }

func (s *RenderStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.TaxForm != nil {
		// The title stays on the artifact; content holds only what the form
		// says so copies from any source hash alike.
		state.Markdown = render.TaxFormContent(state.TaxForm)
		return nil
	}
	if state.Result == nil {
		return errors.New("nothing to render")
	}
	title := statementTitle(state)

	var sections []string
	if txns := state.Result.Transactions; len(txns) > 0 {
		sections = append(sections, render.RenderTransactions(title, render.Period(txns), txns))
	}
	if len(state.Result.Holdings) > 0 {
		sections = append(sections, render.RenderHoldings(title, state.Result.Holdings))
	}
	if len(state.Result.InvestmentTransactions) > 0 {
		sections = append(sections, render.RenderInvestmentTransactions(title, state.Result.InvestmentTransactions))
	}
	if len(state.Result.Balances) > 0 {
		sections = append(sections, render.RenderBalances(title, state.Result.Balances))
	}
	state.Markdown = strings.Join(sections, "\n")
	return nil
}

// statementTitle names rendered statements after the account rather than
// the file, so copies of one export render identically.
func statementTitle(state *PipelineState) string {
	res := state.Result
	for _, t := range res.Transactions {
		if t.AccountName != "" {
			return t.AccountName
		}
	}
	for _, h := range res.Holdings {
		if h.AccountName != "" {
			return h.AccountName
		}
	}
	for _, it := range res.InvestmentTransactions {
		if it.AccountName != "" {
			return it.AccountName
		}
	}
	for _, b := range res.Balances {
		if b.AccountName != "" {
			return b.AccountName
		}
	}
	if inst := res.Metadata["institution"]; inst != "" {
		return inst
	}
	return state.DisplayTitle()
}

// ResolveIdentityStep deduplicates against previously stored artifacts.
type ResolveIdentityStep struct {
	Resolver IdentityResolver
}

func (s *ResolveIdentityStep) Name() string { return StageResolve }

func (s *ResolveIdentityStep) Execute(ctx context.Context, state *PipelineState) error {
	c := identity.Candidate{
		DocumentType: state.DocumentType,
		Scope:        state.Scope,
		Filename:     state.Filename(),
		FileID:       state.Object.FileID,
		Title:        state.DisplayTitle(),
		Content:      state.Markdown,
		Metadata:     documentMetadata(state),
	}
	// Statements are identified by their records; an empty import has no
	// payload to compare, so it falls back to content.
	if state.Result != nil && !state.Result.Empty() {
		c.Statement = true
		c.Payload = state.Result
	}

	res, err := s.Resolver.Resolve(ctx, c)
	if err != nil {
		return err
	}
	state.Resolution = res
	return nil
}

func documentMetadata(state *PipelineState) map[string]string {
	md := map[string]string{
		"source_uri":  state.SourceURI,
		"parser_kind": state.Kind.String(),
	}
	if state.Result != nil {
		if inst := state.Result.Metadata["institution"]; inst != "" {
			md["institution"] = inst
		}
	}
	if state.TaxForm != nil {
		md["form_type"] = string(state.TaxForm.FormType)
		md["extraction_method"] = state.TaxForm.Method
	}
	return md
}

// ExportStep replaces the document's canonical rows. Duplicates export
// nothing.
type ExportStep struct {
	Exporter Exporter
	Now      func() time.Time
}

func (s *ExportStep) Name() string { return StageExport }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Exporter == nil || state.Resolution.Duplicate() {
		return nil
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	docID := state.DocumentID()

	if state.Resolution.Outcome == identity.OutcomeUpdated {
		if err := s.Exporter.DeleteDocumentRows(ctx, docID); err != nil {
			return err
		}
	}

	doc, err := documentRow(state, now)
	if err != nil {
		return err
	}
	if err := s.Exporter.InsertDocument(ctx, doc); err != nil {
		return err
	}

	if state.TaxForm != nil {
		row, err := infra.NewTaxFormRow(docID, state.ParsingRunID, state.TaxForm, now)
		if err != nil {
			return err
		}
		if err := s.Exporter.InsertTaxForm(ctx, row); err != nil {
			return err
		}
		s.exported(ctx, state, "tax_forms", 1)
		return nil
	}

	res := state.Result
	if len(res.Transactions) > 0 {
		if err := s.Exporter.InsertTransactions(ctx, infra.NewTransactionRows(docID, state.ParsingRunID, res.Transactions, now)); err != nil {
			return err
		}
		s.exported(ctx, state, "transactions", len(res.Transactions))
	}
	if len(res.Holdings) > 0 {
		if err := s.Exporter.InsertHoldings(ctx, infra.NewHoldingRows(docID, state.ParsingRunID, res.Holdings, now)); err != nil {
			return err
		}
		s.exported(ctx, state, "holdings", len(res.Holdings))
	}
	if len(res.InvestmentTransactions) > 0 {
		rows := infra.NewInvestmentTransactionRows(docID, state.ParsingRunID, res.InvestmentTransactions, now)
		if err := s.Exporter.InsertInvestmentTransactions(ctx, rows); err != nil {
			return err
		}
		s.exported(ctx, state, "investment_transactions", len(res.InvestmentTransactions))
	}
	if len(res.Balances) > 0 {
		if err := s.Exporter.InsertBalances(ctx, infra.NewBalanceRows(docID, state.ParsingRunID, res.Balances, now)); err != nil {
			return err
		}
		s.exported(ctx, state, "balances", len(res.Balances))
	}
	return nil
}

func (s *ExportStep) exported(ctx context.Context, state *PipelineState, table string, n int) {
	state.Exported += n
	recordsExported.Add(ctx, int64(n), metric.WithAttributes(attribute.String("table", table)))
}

func documentRow(state *PipelineState, now time.Time) (*infra.DocumentRow, error) {
	a := state.Resolution.Artifact
	row := &infra.DocumentRow{
		DocumentID:       a.ID.String(),
		ParsingRunID:     state.ParsingRunID,
		SourceURI:        state.SourceURI,
		DocumentType:     state.DocumentType,
		Format:           state.Kind.String(),
		Title:            a.Title,
		OriginalFilename: state.Filename(),
		IdentifierHash:   a.IdentifierHash,
		ContentHash:      a.ContentHash,
		Outcome:          string(state.Resolution.Outcome),
		MatchedBy:        string(state.Resolution.MatchedBy),
		IngestedTS:       now,
	}
	if state.Result != nil {
		row.Institution = state.Result.Metadata["institution"]
		if len(state.Result.Metadata) > 0 {
			raw, err := json.Marshal(state.Result.Metadata)
			if err != nil {
				return nil, fmt.Errorf("documentRow: encoding metadata: %w", err)
			}
			row.Metadata = bigquerylib.NullJSON{JSONVal: string(raw), Valid: true}
		}
	}
	return row, nil
}

// MarkSuccessStep closes the parsing run. A duplicate closes as DUPLICATE;
// an update supersedes the document's earlier runs.
type MarkSuccessStep struct {
	Ledger Ledger
}

func (s *MarkSuccessStep) Name() string { return StageFinish }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Ledger == nil {
		return nil
	}
	res := state.Resolution
	status := infra.RunStatusSuccess
	if res.Duplicate() {
		status = infra.RunStatusDuplicate
	}

	md := map[string]any{
		"outcome":     string(res.Outcome),
		"parser_kind": state.Kind.String(),
	}
	if res.MatchedBy != identity.MatchNone {
		md["matched_by"] = string(res.MatchedBy)
	}
	if len(state.Warnings) > 0 {
		md["warnings"] = state.Warnings
	}
	if state.TaxForm != nil {
		md["needs_review"] = state.TaxForm.NeedsReview
		md["mean_confidence"] = pii.RoundConfidence(state.TaxForm.Mean)
	}

	if err := s.Ledger.MarkParsingRunSucceeded(ctx, state.ParsingRunID, infra.RunOutcome{
		DocumentID:  state.DocumentID(),
		Status:      status,
		RecordCount: state.Exported,
		Metadata:    md,
	}); err != nil {
		return err
	}

	if res.Outcome == identity.OutcomeUpdated {
		if err := s.Ledger.MarkParsingRunsAsSuperseded(ctx, state.DocumentID(), state.ParsingRunID); err != nil {
			return err
		}
	}
	return nil
}
