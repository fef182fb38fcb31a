// Package app wires the ingest pipeline from configuration for the command
// line tools and the worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/convert"
	"github.com/dvloznov/finance-ingest/internal/identity"
	"github.com/dvloznov/finance-ingest/internal/identity/inmemory"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/infra/postgres"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/parsers"
	"github.com/dvloznov/finance-ingest/internal/pdftext"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
	"github.com/dvloznov/finance-ingest/internal/retry"
	"github.com/dvloznov/finance-ingest/internal/schemainfer"
	"github.com/dvloznov/finance-ingest/internal/source"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// Options select which external services are used.
type Options struct {
	// Local keeps identities in memory and records nothing in BigQuery.
	// Only local files can be fetched.
	Local bool
}

// App holds the wired collaborators. Repo and GCS are nil in local mode.
type App struct {
	Config   *config.Config
	Deps     pipeline.Deps
	Registry *parsers.Registry
	Taxforms *taxform.Extractor
	Repo     *infra.Repository
	GCS      *source.GCS

	closers []func() error
}

// New builds an App from cfg. Close releases whatever it opened, also after
// a partial failure.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.Component(ctx, "app")
	a := &App{Config: cfg}
	policy := retry.FromConfig(cfg.Retry)

	model, err := reasoning.New(ctx, cfg.Reasoning)
	switch {
	case errors.Is(err, reasoning.ErrNotConfigured):
		log.Info().Msg("no reasoning backend: schema inference uses the heuristic parser, tax forms stop at OCR")
		model = nil
	case err != nil:
		return nil, fmt.Errorf("app.New: reasoning backend: %w", err)
	}

	poppler := pdftext.NewPoppler(cfg.Extract.PdftotextPath, false)
	pdfText := convert.Chain{poppler}
	if dm, ok := model.(reasoning.DocumentModel); ok {
		pdfText = append(pdfText, convert.New(dm, policy))
	}

	var port schemainfer.Port
	if model != nil {
		port = schemainfer.ModelPort{Model: model}
	}

	a.Registry = parsers.NewDefaultRegistry(parsers.Options{
		PDFText:  pdfText,
		Inferred: schemainfer.NewParser(port),
	})
	a.Taxforms = taxform.NewExtractor(cfg.Extract, model)

	router := &source.Router{Local: source.Local{}}
	a.Deps = pipeline.Deps{
		Source:   router,
		Parsers:  a.Registry,
		TaxForms: a.Taxforms,
		TaxText:  poppler,
	}

	if opts.Local {
		a.Deps.Identity = identity.NewResolver(inmemory.NewStore())
		return a, nil
	}

	gcs, err := source.NewGCS(ctx, policy)
	if err != nil {
		return a, fmt.Errorf("app.New: %w", err)
	}
	a.GCS = gcs
	router.GCS = gcs
	a.closers = append(a.closers, gcs.Close)

	db, err := postgres.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return a, fmt.Errorf("app.New: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.Deps.Identity = identity.NewResolver(postgres.NewArtifactRepository(db))

	repo, err := infra.NewRepository(ctx, cfg.GCP)
	if err != nil {
		return a, fmt.Errorf("app.New: %w", err)
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)
	a.Deps.Ledger = repo
	a.Deps.Exporter = repo

	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ingest runs the pipeline for req.
func (a *App) Ingest(ctx context.Context, req pipeline.Request) (*pipeline.PipelineState, error) {
	return pipeline.Ingest(ctx, a.Deps, req)
}
