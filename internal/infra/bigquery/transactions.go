package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

const (
	DirectionInflow  = "INFLOW"
	DirectionOutflow = "OUTFLOW"
	defaultCurrency  = "USD"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	DocumentID    string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID  string `bigquery:"parsing_run_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, positive is inflow
	Currency string   `bigquery:"currency"` // REQUIRED

	BalanceAfter *big.Rat `bigquery:"balance_after"` // NULLABLE NUMERIC

	Direction string `bigquery:"direction"` // REQUIRED
	Kind      string `bigquery:"kind"`      // REQUIRED

	RawDescription string              `bigquery:"raw_description"` // REQUIRED
	Merchant       bigquery.NullString `bigquery:"merchant"`        // NULLABLE
	CategoryName   bigquery.NullString `bigquery:"category_name"`   // NULLABLE

	AccountName bigquery.NullString `bigquery:"account_name"` // NULLABLE
	AccountType bigquery.NullString `bigquery:"account_type"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTransactionRows converts parsed transactions for export.
func NewTransactionRows(documentID, parsingRunID string, txns []domain.BankTransaction, now time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(txns))
	for _, t := range txns {
		direction := DirectionInflow
		if t.IsOutflow() {
			direction = DirectionOutflow
		}
		row := &TransactionRow{
			TransactionID:   uuid.NewString(),
			DocumentID:      documentID,
			ParsingRunID:    parsingRunID,
			TransactionDate: civil.DateOf(t.Date),
			Amount:          t.Amount.Rat(),
			Currency:        defaultCurrency,
			Direction:       direction,
			Kind:            string(t.Kind),
			RawDescription:  t.Description,
			Merchant:        nullString(t.Merchant),
			CategoryName:    nullString(t.Category),
			AccountName:     nullString(t.AccountName),
			AccountType:     nullString(string(t.AccountType)),
			CreatedTS:       now,
		}
		if t.Balance != nil {
			row.BalanceAfter = t.Balance.Rat()
		}
		rows = append(rows, row)
	}
	return rows
}

// ToDomain converts an exported row back to a canonical transaction.
func (r *TransactionRow) ToDomain() domain.BankTransaction {
	t := domain.BankTransaction{
		Date:        r.TransactionDate.In(time.UTC),
		Description: r.RawDescription,
		Amount:      ratToDecimal(r.Amount),
		Kind:        domain.TransactionKind(r.Kind),
		Merchant:    r.Merchant.StringVal,
		Category:    r.CategoryName.StringVal,
		AccountName: r.AccountName.StringVal,
		AccountType: domain.AccountType(r.AccountType.StringVal),
	}
	if r.BalanceAfter != nil {
		b := ratToDecimal(r.BalanceAfter)
		t.Balance = &b
	}
	return t
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Zero
	}
	return d
}
