package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Parsing run statuses.
const (
	RunStatusRunning    = "RUNNING"
	RunStatusSuccess    = "SUCCESS"
	RunStatusFailed     = "FAILED"
	RunStatusDuplicate  = "DUPLICATE"
	RunStatusSuperseded = "SUPERSEDED"
)

type ParsingRunRow struct {
	ParsingRunID string              `bigquery:"parsing_run_id"` // REQUIRED
	DocumentID   bigquery.NullString `bigquery:"document_id"`    // NULLABLE until identity is resolved

	SourceURI    string `bigquery:"source_uri"`    // REQUIRED
	DocumentType string `bigquery:"document_type"` // NULLABLE
	ParserName   string `bigquery:"parser_name"`   // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	FailedStage  bigquery.NullString `bigquery:"failed_stage"`  // NULLABLE
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	RecordCount bigquery.NullInt64 `bigquery:"record_count"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}

// RunStart describes a parsing run at the moment it begins.
type RunStart struct {
	SourceURI    string
	DocumentType string
	ParserName   string
}

// RunOutcome is written when a run finishes successfully.
type RunOutcome struct {
	DocumentID  string
	Status      string
	RecordCount int
	Metadata    map[string]any
}
