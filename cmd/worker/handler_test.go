package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/identity"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

func TestJobHandler(t *testing.T) {
	artifactID := uuid.New()
	resolved := func(outcome identity.Outcome) *identity.Resolution {
		return &identity.Resolution{Artifact: &identity.Artifact{ID: artifactID}, Outcome: outcome}
	}

	tests := []struct {
		name          string
		state         *pipeline.PipelineState
		err           error
		wantErr       bool
		wantPermanent bool
		wantStatus    jobs.JobStatus
		wantStage     string
		wantOutcome   string
	}{
		{
			name:        "created",
			state:       &pipeline.PipelineState{ParsingRunID: "run-1", Resolution: resolved(identity.OutcomeCreated)},
			wantStatus:  jobs.JobStatusRunning,
			wantOutcome: "created",
		},
		{
			name:        "duplicate",
			state:       &pipeline.PipelineState{ParsingRunID: "run-2", Resolution: resolved(identity.OutcomeUnchanged)},
			wantStatus:  jobs.JobStatusDuplicate,
			wantOutcome: "unchanged",
		},
		{
			name:          "unsupported format is permanent",
			state:         &pipeline.PipelineState{},
			err:           &pipeline.StageError{Stage: pipeline.StageDetect, Err: fmt.Errorf("x.docx: %w", domain.ErrUnsupportedFormat)},
			wantErr:       true,
			wantPermanent: true,
			wantStatus:    jobs.JobStatusRunning,
			wantStage:     pipeline.StageDetect,
		},
		{
			name:       "export failure is retried",
			state:      &pipeline.PipelineState{ParsingRunID: "run-3"},
			err:        &pipeline.StageError{Stage: pipeline.StageExport, Err: errors.New("bigquery unavailable")},
			wantErr:    true,
			wantStatus: jobs.JobStatusRunning,
			wantStage:  pipeline.StageExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got pipeline.Request
			handler := newJobHandler(func(_ context.Context, req pipeline.Request) (*pipeline.PipelineState, error) {
				got = req
				return tt.state, tt.err
			})

			job := &jobs.IngestDocumentJob{
				JobID:     "job",
				SourceURI: "gs://bucket/w2.pdf",
				FormType:  "W-2",
				Status:    jobs.JobStatusRunning,
			}
			err := handler(context.Background(), job)

			if (err != nil) != tt.wantErr {
				t.Fatalf("handler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if jobs.Permanent(err) != tt.wantPermanent {
				t.Errorf("Permanent() = %v, want %v", jobs.Permanent(err), tt.wantPermanent)
			}
			if got.FormType != taxform.FormW2 || got.SourceURI != job.SourceURI {
				t.Errorf("request = %+v", got)
			}
			if job.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", job.Status, tt.wantStatus)
			}
			if job.FailedStage != tt.wantStage {
				t.Errorf("failed stage = %q, want %q", job.FailedStage, tt.wantStage)
			}
			if job.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", job.Outcome, tt.wantOutcome)
			}
			if tt.state.ParsingRunID != job.ParsingRunID {
				t.Errorf("parsing run = %q", job.ParsingRunID)
			}
			if tt.wantOutcome != "" && job.ArtifactID != artifactID.String() {
				t.Errorf("artifact = %q", job.ArtifactID)
			}
		})
	}
}
