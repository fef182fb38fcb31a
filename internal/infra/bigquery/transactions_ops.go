package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertTransactions streams a batch of TransactionRow.
func (r *Repository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.put(ctx, "InsertTransactions", transactionsTable, rows)
}

// InsertHoldings streams a batch of HoldingRow.
func (r *Repository) InsertHoldings(ctx context.Context, rows []*HoldingRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.put(ctx, "InsertHoldings", holdingsTable, rows)
}

// InsertInvestmentTransactions streams a batch of InvestmentTransactionRow.
func (r *Repository) InsertInvestmentTransactions(ctx context.Context, rows []*InvestmentTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.put(ctx, "InsertInvestmentTransactions", investmentTransactionsTable, rows)
}

// InsertBalances streams a batch of BalanceRow.
func (r *Repository) InsertBalances(ctx context.Context, rows []*BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.put(ctx, "InsertBalances", balancesTable, rows)
}

// InsertTaxForm streams one TaxFormRow.
func (r *Repository) InsertTaxForm(ctx context.Context, row *TaxFormRow) error {
	return r.put(ctx, "InsertTaxForm", taxFormsTable, row)
}

// QueryTransactionsByDateRange returns exported transactions dated within
// [startDate, endDate]. Only rows from successful parsing runs are
// included, so superseded exports are skipped.
func (r *Repository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.document_id,
			t.parsing_run_id,
			t.transaction_date,
			t.amount,
			t.currency,
			t.balance_after,
			t.direction,
			t.kind,
			t.raw_description,
			t.merchant,
			t.category_name,
			t.account_name,
			t.account_type,
			t.created_ts
		FROM %s t
		INNER JOIN %s pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND pr.status = @status
		ORDER BY t.transaction_date, t.created_ts
	`, r.table(transactionsTable), r.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
		{Name: "status", Value: RunStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
