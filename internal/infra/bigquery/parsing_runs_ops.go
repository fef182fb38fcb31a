package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/logger"
)

const maxErrorMessageLen = 2000

// StartParsingRun inserts a row with status=RUNNING and returns the
// generated parsing_run_id.
func (r *Repository) StartParsingRun(ctx context.Context, start RunStart) (string, error) {
	parsingRunID := uuid.NewString()

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			source_uri,
			document_type,
			parser_name,
			started_ts,
			status
		)
		VALUES (
			@parsing_run_id,
			@source_uri,
			@document_type,
			@parser_name,
			@started_ts,
			@status
		)
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "source_uri", Value: start.SourceURI},
		{Name: "document_type", Value: start.DocumentType},
		{Name: "parser_name", Value: start.ParserName},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runDML(ctx, "StartParsingRun", q); err != nil {
		return "", err
	}
	return parsingRunID, nil
}

// MarkParsingRunFailed sets status=FAILED with the failing stage and
// message. Failures to record are logged, never returned, so they do not
// mask the original error.
func (r *Repository) MarkParsingRunFailed(ctx context.Context, parsingRunID, stage string, parseErr error) {
	log := logger.FromContext(ctx)

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    failed_stage = @failed_stage,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "failed_stage", Value: stage},
		{Name: "error_message", Value: truncateError(parseErr)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, "MarkParsingRunFailed", q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Str("stage", stage).
			Msg("MarkParsingRunFailed: recording failure")
	}
}

// MarkParsingRunSucceeded closes the run with its outcome. Status defaults
// to SUCCESS; duplicates are closed with DUPLICATE.
func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, out RunOutcome) error {
	status := out.Status
	if status == "" {
		status = RunStatusSuccess
	}
	meta, err := jsonValue(out.Metadata)
	if err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: encoding metadata: %w", err)
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    document_id = @document_id,
		    record_count = @record_count,
		    metadata = SAFE.PARSE_JSON(@metadata),
		    error_message = NULL
		WHERE parsing_run_id = @parsing_run_id
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "document_id", Value: out.DocumentID},
		{Name: "record_count", Value: int64(out.RecordCount)},
		{Name: "metadata", Value: meta.JSONVal},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	return runDML(ctx, "MarkParsingRunSucceeded", q)
}

// MarkParsingRunsAsSuperseded marks earlier successful runs of a document
// as SUPERSEDED, keeping only currentRunID.
func (r *Repository) MarkParsingRunsAsSuperseded(ctx context.Context, documentID, currentRunID string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @superseded
		WHERE document_id = @document_id
		  AND parsing_run_id != @current_run_id
		  AND status = @success
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "superseded", Value: RunStatusSuperseded},
		{Name: "document_id", Value: documentID},
		{Name: "current_run_id", Value: currentRunID},
		{Name: "success", Value: RunStatusSuccess},
	}

	return runDML(ctx, "MarkParsingRunsAsSuperseded", q)
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
