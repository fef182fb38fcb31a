// Package bigquery records parsing runs and model outputs and exports
// canonical records to BigQuery.
package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-ingest/internal/config"
)

const (
	parsingRunsTable  = "parsing_runs"
	modelOutputsTable = "model_outputs"
	documentsTable    = "documents"
	transactionsTable = "transactions"
	holdingsTable     = "holdings"
	balancesTable     = "balances"
	taxFormsTable     = "tax_forms"
	dateFormat        = "2006-01-02"

	investmentTransactionsTable = "investment_transactions"
)

// Repository holds a shared BigQuery client for every ledger and export
// operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository opens a client for cfg.ProjectID.
func NewRepository(ctx context.Context, cfg config.GCPConfig) (*Repository, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("NewRepository: project id is required")
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, cfg.ProjectID, cfg.DatasetID), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	if datasetID == "" {
		datasetID = "finance"
	}
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns the fully qualified, backquoted table name.
func (r *Repository) table(name string) string {
	return qualifiedTable(r.projectID, r.datasetID, name)
}

func qualifiedTable(projectID, datasetID, name string) string {
	return "`" + projectID + "." + datasetID + "." + name + "`"
}

// runDML runs q and waits for it to finish.
func runDML(ctx context.Context, op string, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}

// put streams rows into the named table.
func (r *Repository) put(ctx context.Context, op, table string, rows any) error {
	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("%s: inserting rows: %w", op, err)
	}
	return nil
}

// jsonValue encodes v for a JSON column. A nil or empty map is NULL.
func jsonValue(v any) (bigquery.NullJSON, error) {
	if v == nil {
		return bigquery.NullJSON{}, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return bigquery.NullJSON{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}, err
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}, nil
}
