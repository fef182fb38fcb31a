package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// DocumentRow is the catalog entry written for every ingest that resolves
// to an artifact. Outcome records whether that ingest created, updated,
// renamed or merely re-saw the artifact.
type DocumentRow struct {
	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED
	SourceURI    string `bigquery:"source_uri"`     // REQUIRED

	DocumentType     string `bigquery:"document_type"`     // REQUIRED
	Format           string `bigquery:"format"`            // NULLABLE
	Institution      string `bigquery:"institution"`       // NULLABLE
	Title            string `bigquery:"title"`             // NULLABLE
	OriginalFilename string `bigquery:"original_filename"` // NULLABLE

	IdentifierHash string `bigquery:"identifier_hash"` // REQUIRED
	ContentHash    string `bigquery:"content_hash"`    // REQUIRED
	Outcome        string `bigquery:"outcome"`         // REQUIRED
	MatchedBy      string `bigquery:"matched_by"`      // NULLABLE

	IngestedTS time.Time `bigquery:"ingested_ts"` // REQUIRED

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}
