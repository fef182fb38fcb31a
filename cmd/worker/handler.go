package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// ingestFunc runs the pipeline for one request.
type ingestFunc func(ctx context.Context, req pipeline.Request) (*pipeline.PipelineState, error)

// newJobHandler maps ingest jobs onto pipeline runs and copies the outcome
// back onto the job.
func newJobHandler(ingest ingestFunc) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestDocumentJob)
		if !ok {
			return &jobs.PermanentError{Err: fmt.Errorf("unexpected job type: %T", job)}
		}
		log := logger.FromContext(ctx)

		req := pipeline.Request{
			SourceURI: ingestJob.SourceURI,
			Title:     ingestJob.Title,
			Scope:     ingestJob.Scope,
			FormType:  taxform.ParseFormType(ingestJob.FormType),
		}

		log.Info().Msg("Processing ingest job")

		state, err := ingest(ctx, req)
		if state != nil {
			ingestJob.ParsingRunID = state.ParsingRunID
			if state.Resolution != nil && state.Resolution.Artifact != nil {
				ingestJob.ArtifactID = state.Resolution.Artifact.ID.String()
				ingestJob.Outcome = string(state.Resolution.Outcome)
			}
		}
		if err != nil {
			var stageErr *pipeline.StageError
			if errors.As(err, &stageErr) {
				ingestJob.FailedStage = stageErr.Stage
			}
			if errors.Is(err, domain.ErrUnsupportedFormat) {
				return &jobs.PermanentError{Err: err}
			}
			return err
		}

		ingestJob.FailedStage = ""
		if state.Resolution != nil && state.Resolution.Duplicate() {
			ingestJob.Status = jobs.JobStatusDuplicate
		}

		log.Info().
			Str("outcome", ingestJob.Outcome).
			Str("artifact_id", ingestJob.ArtifactID).
			Msg("Ingest job completed")
		return nil
	}
}
