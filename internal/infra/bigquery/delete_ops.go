package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// exportTables hold rows keyed by document_id that are replaced when a
// document's content changes.
var exportTables = []string{transactionsTable, holdingsTable, investmentTransactionsTable, balancesTable, taxFormsTable}

// DeleteDocumentRows removes every exported record of a document so a
// re-export reflects only its latest content. The ledger tables are kept.
func (r *Repository) DeleteDocumentRows(ctx context.Context, documentID string) error {
	for _, table := range exportTables {
		q := r.client.Query(fmt.Sprintf(`
			DELETE FROM %s
			WHERE document_id = @document_id
		`, r.table(table)))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "document_id", Value: documentID},
		}
		if err := runDML(ctx, "DeleteDocumentRows", q); err != nil {
			return fmt.Errorf("deleting %s: %w", table, err)
		}
	}
	return nil
}
