package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// TaxFormRow stores an extraction outcome. Fields holds the storage-safe
// map only: identifiers hashed, names masked.
type TaxFormRow struct {
	TaxFormID    string `bigquery:"tax_form_id"`    // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED

	FormType         string            `bigquery:"form_type"`         // REQUIRED
	ExtractionMethod string            `bigquery:"extraction_method"` // REQUIRED
	MeanConfidence   float64           `bigquery:"mean_confidence"`   // REQUIRED
	NeedsReview      bool              `bigquery:"needs_review"`      // REQUIRED
	Fields           bigquery.NullJSON `bigquery:"fields"`            // NULLABLE
	Confidence       bigquery.NullJSON `bigquery:"confidence"`        // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTaxFormRow converts an extraction result for export.
func NewTaxFormRow(documentID, parsingRunID string, r *taxform.ExtractionResult, now time.Time) (*TaxFormRow, error) {
	fields, err := jsonValue(r.StorageFields())
	if err != nil {
		return nil, fmt.Errorf("NewTaxFormRow: encoding fields: %w", err)
	}
	conf := r.StorageConfidence()
	confidence := bigquery.NullJSON{}
	if len(conf) > 0 {
		if confidence, err = jsonValue(conf); err != nil {
			return nil, fmt.Errorf("NewTaxFormRow: encoding confidence: %w", err)
		}
	}
	return &TaxFormRow{
		TaxFormID:        uuid.NewString(),
		DocumentID:       documentID,
		ParsingRunID:     parsingRunID,
		FormType:         string(r.FormType),
		ExtractionMethod: r.Method,
		MeanConfidence:   r.Mean,
		NeedsReview:      r.NeedsReview,
		Fields:           fields,
		Confidence:       confidence,
		CreatedTS:        now,
	}, nil
}
