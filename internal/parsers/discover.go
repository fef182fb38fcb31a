package parsers

import (
	"context"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// ParseDiscover reads a Discover card export (Trans. Date, Post Date,
// Description, Amount, Category). Discover reports purchases as positive
// amounts, so values are negated into the canonical convention.
func ParseDiscover(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	t, err := readTable(content, "Trans. Date", "Amount")
	if err != nil {
		return nil, err
	}

	res := domain.NewParseResult()
	res.Metadata["institution"] = "discover"

	for i, row := range t.rows {
		date, err := normalize.ParseDate(t.get(row, "Trans. Date"))
		if err != nil {
			skipRow(ctx, KindDiscover, t.rowNumber(i), err)
			continue
		}
		desc := t.get(row, "Description")
		if err := requireField("Description", desc); err != nil {
			skipRow(ctx, KindDiscover, t.rowNumber(i), err)
			continue
		}
		amount := domain.FromOutflowPositive(normalize.ParseAmount(t.get(row, "Amount")))
		category := t.get(row, "Category")

		var kind domain.TransactionKind
		switch {
		case amount.IsNegative():
			kind = domain.KindPurchase
		case strings.Contains(strings.ToLower(desc), "payment") || strings.Contains(strings.ToLower(category), "payment"):
			kind = domain.KindPayment
		default:
			kind = domain.KindCredit
		}

		res.Transactions = append(res.Transactions, domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        kind,
			Category:    category,
			AccountName: "Discover Card",
			AccountType: domain.AccountCreditCard,
			Raw:         t.raw(row),
		})
	}
	return res, nil
}
