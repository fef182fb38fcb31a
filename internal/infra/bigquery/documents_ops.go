package bigquery

import "context"

// InsertDocument streams a single DocumentRow.
func (r *Repository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	return r.put(ctx, "InsertDocument", documentsTable, row)
}
