// Package pipeline ingests one source document end to end: fetch, format
// detection, parsing or tax-form extraction, canonical rendering, identity
// resolution and export of the canonical records.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/identity"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/parsers"
	"github.com/dvloznov/finance-ingest/internal/source"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// Document types recorded on artifacts and parsing runs.
const (
	DocumentStatement = "STATEMENT"
	DocumentTaxForm   = "TAX_FORM"
)

// DefaultScope partitions identities when the request names none.
const DefaultScope = "default"

// Stage names reported in StageError and on failed parsing runs.
const (
	StageFetch    = "fetch"
	StageDetect   = "detect"
	StageRecord   = "record"
	StageParse    = "parse"
	StageTax      = "tax_extract"
	StageValidate = "validate"
	StageRender   = "render"
	StageResolve  = "resolve"
	StageExport   = "export"
	StageFinish   = "finish"
)

var (
	meter           = otel.Meter("finance-ingest/pipeline")
	ingestOutcomes  metric.Int64Counter
	ingestFailures  metric.Int64Counter
	recordsExported metric.Int64Counter
)

func init() {
	ingestOutcomes, _ = meter.Int64Counter("ingest.documents",
		metric.WithDescription("Ingested documents by identity outcome"))
	ingestFailures, _ = meter.Int64Counter("ingest.failures",
		metric.WithDescription("Failed ingests by stage"))
	recordsExported, _ = meter.Int64Counter("ingest.records.exported",
		metric.WithDescription("Canonical records exported by table"))
}

// StageError reports which stage of an ingest failed and why.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Request names the document to ingest.
type Request struct {
	SourceURI string
	// Title defaults to the file name without its extension.
	Title string
	Scope string
	// FormType forces tax-form extraction for a PDF.
	FormType taxform.FormType
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request

	Object       *source.Object
	Kind         parsers.Kind
	DocumentType string
	ParsingRunID string

	Result  *domain.ParseResult
	TaxForm *taxform.ExtractionResult

	Markdown   string
	Resolution *identity.Resolution
	Warnings   []string
	Exported   int
}

// NewState returns the initial state for req with defaults applied.
func NewState(req Request) *PipelineState {
	if req.Scope == "" {
		req.Scope = DefaultScope
	}
	return &PipelineState{Request: req}
}

// DocumentID is the stable artifact id once identity is resolved.
func (s *PipelineState) DocumentID() string {
	if s.Resolution == nil || s.Resolution.Artifact == nil {
		return ""
	}
	return s.Resolution.Artifact.ID.String()
}

// Filename is the fetched object's name.
func (s *PipelineState) Filename() string {
	if s.Object == nil {
		return source.FilenameFromURI(s.SourceURI)
	}
	return s.Object.Name
}

// DisplayTitle is the requested title or the file's base name.
func (s *PipelineState) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	name := s.Filename()
	return strings.TrimSuffix(name, path.Ext(name))
}

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps  []PipelineStep
	ledger Ledger
}

// NewPipeline creates a new pipeline with the given steps. ledger may be nil.
func NewPipeline(ledger Ledger, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, ledger: ledger}
}

// Execute runs all steps in the pipeline sequentially. Cancellation is
// observed between steps only. A failure after the parsing run started is
// recorded on the run.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.Component(ctx, "pipeline").With().Str("source_uri", state.SourceURI).Logger()
	started := time.Now()

	for _, step := range p.steps {
		err := ctx.Err()
		if err == nil {
			err = step.Execute(ctx, state)
		}
		if err != nil {
			stageErr := &StageError{Stage: step.Name(), Err: err}
			if p.ledger != nil && state.ParsingRunID != "" {
				p.ledger.MarkParsingRunFailed(ctx, state.ParsingRunID, step.Name(), err)
			}
			ingestFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", step.Name())))
			log.Error().Err(err).Str("stage", step.Name()).Str("parsing_run_id", state.ParsingRunID).Msg("ingest failed")
			return stageErr
		}
	}

	outcome := ""
	if state.Resolution != nil {
		outcome = string(state.Resolution.Outcome)
	}
	ingestOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("document_type", state.DocumentType),
	))
	log.Info().
		Str("document_id", state.DocumentID()).
		Str("outcome", outcome).
		Str("parser_kind", state.Kind.String()).
		Int("exported", state.Exported).
		Dur("elapsed", time.Since(started)).
		Msg("ingest finished")
	return nil
}

// NewIngestPipeline creates the standard ingestion pipeline over deps.
func NewIngestPipeline(deps Deps) *Pipeline {
	return NewPipeline(deps.Ledger,
		&FetchStep{Source: deps.Source},
		&DetectStep{TaxText: deps.TaxText, TaxEnabled: deps.TaxForms != nil},
		&StartParsingRunStep{Ledger: deps.Ledger},
		&ParseStatementStep{Parsers: deps.Parsers},
		&ExtractTaxFormStep{Extractor: deps.TaxForms},
		&ValidateStep{},
		&StoreModelOutputStep{Ledger: deps.Ledger},
		&RenderStep{},
		&ResolveIdentityStep{Resolver: deps.Identity},
		&ExportStep{Exporter: deps.Exporter},
		&MarkSuccessStep{Ledger: deps.Ledger},
	)
}

// Ingest runs the standard pipeline for req and returns the final state.
// The state is returned on failure too, for recorded partial progress.
func Ingest(ctx context.Context, deps Deps, req Request) (*PipelineState, error) {
	state := NewState(req)
	err := NewIngestPipeline(deps).Execute(ctx, state)
	return state, err
}
