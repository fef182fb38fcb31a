package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// InsertModelOutput inserts a single ModelOutputRow. Uses DML INSERT so
// the row is immediately visible to later UPDATEs.
func (r *Repository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	if row.OutputID == "" {
		row.OutputID = uuid.NewString()
	}
	if !row.CreatedTS.Valid {
		row.CreatedTS = bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true}
	}

	q := r.client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			output_id, parsing_run_id, document_id,
			model_name, method, raw_json,
			extracted_text, confidence, created_ts, notes
		)
		VALUES (
			@output_id, @parsing_run_id, @document_id,
			@model_name, @method, SAFE.PARSE_JSON(@raw_json),
			@extracted_text, @confidence, @created_ts, @notes
		)
	`, r.table(modelOutputsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "method", Value: row.Method},
		{Name: "raw_json", Value: row.RawJSON.JSONVal},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "confidence", Value: row.Confidence},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "notes", Value: row.Notes},
	}

	return runDML(ctx, "InsertModelOutput", q)
}
