package bigquery

import "cloud.google.com/go/bigquery"

// ModelOutputRow keeps what an extraction step produced: the tax-form
// tier trace, an inferred CSV mapping or a converted document's text.
type ModelOutputRow struct {
	OutputID     string `bigquery:"output_id"`      // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // NULLABLE

	ModelName string              `bigquery:"model_name"` // REQUIRED
	Method    bigquery.NullString `bigquery:"method"`     // NULLABLE

	RawJSON       bigquery.NullJSON   `bigquery:"raw_json"`       // NULLABLE
	ExtractedText bigquery.NullString `bigquery:"extracted_text"` // NULLABLE

	Confidence bigquery.NullFloat64   `bigquery:"confidence"` // NULLABLE
	CreatedTS  bigquery.NullTimestamp `bigquery:"created_ts"` // REQUIRED
	Notes      bigquery.NullString    `bigquery:"notes"`      // NULLABLE
}
