package parsers

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var (
	dateColumns        = []string{"Date", "Transaction Date", "Posting Date", "Posted Date", "Trans Date", "Booking Date"}
	descriptionColumns = []string{"Description", "Payee", "Name", "Details", "Memo", "Narrative"}
	amountColumns      = []string{"Amount", "Transaction Amount", "Amount (USD)"}
	debitColumns       = []string{"Debit", "Withdrawal", "Withdrawals", "Debit Amount"}
	creditColumns      = []string{"Credit", "Deposit", "Deposits", "Credit Amount"}
	balanceColumns     = []string{"Balance", "Running Balance", "Running Bal."}
)

// ParseGenericBank reads a bank CSV with a date column and either a signed
// amount column or separate debit/credit columns.
func ParseGenericBank(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	t, err := readTable(content)
	if err != nil {
		return nil, err
	}
	if !t.has(dateColumns...) {
		return nil, fmt.Errorf("generic bank: no date column in %v: %w", t.header, domain.ErrUnsupportedFormat)
	}
	split := !t.has(amountColumns...)
	if split && !t.has(debitColumns...) && !t.has(creditColumns...) {
		return nil, fmt.Errorf("generic bank: no amount columns in %v: %w", t.header, domain.ErrUnsupportedFormat)
	}

	res := domain.NewParseResult()
	for i, row := range t.rows {
		date, err := normalize.ParseDate(t.get(row, dateColumns...))
		if err != nil {
			skipRow(ctx, KindGenericBank, t.rowNumber(i), err)
			continue
		}
		desc := t.get(row, descriptionColumns...)
		if err := requireField("Description", desc); err != nil {
			skipRow(ctx, KindGenericBank, t.rowNumber(i), err)
			continue
		}

		amount := normalize.ParseAmount(t.get(row, amountColumns...))
		if split {
			debit := normalize.ParseAmount(t.get(row, debitColumns...)).Abs()
			credit := normalize.ParseAmount(t.get(row, creditColumns...)).Abs()
			amount = credit.Sub(debit)
		}

		kind, ok := domain.ParseTransactionKind(t.get(row, "Type", "Transaction Type"))
		if !ok {
			kind = domain.ClassifyByKeywords(desc, amount)
		}

		res.Transactions = append(res.Transactions, domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        kind,
			Balance:     normalize.OptionalAmount(t.get(row, balanceColumns...)),
			Category:    t.get(row, "Category"),
			Raw:         t.raw(row),
		})
	}
	return res, nil
}
