package parsers

import (
	"context"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var chaseBankTypes = map[string]domain.TransactionKind{
	"DEBIT":           domain.KindDebit,
	"ACH_DEBIT":       domain.KindDebit,
	"ATM":             domain.KindWithdrawal,
	"DSLIP":           domain.KindDebit,
	"CHECK_PAID":      domain.KindDebit,
	"CHECK":           domain.KindDebit,
	"BILLPAY":         domain.KindPayment,
	"CREDIT":          domain.KindCredit,
	"ACH_CREDIT":      domain.KindCredit,
	"DEP":             domain.KindDeposit,
	"FEE_TRANSACTION": domain.KindFee,
	"ACCT_XFER":       domain.KindTransfer,
	"QUICKPAY_DEBIT":  domain.KindTransfer,
	"QUICKPAY_CREDIT": domain.KindTransfer,
}

// ParseChaseBank reads a Chase checking or savings activity export
// (Details, Posting Date, Description, Amount, Type, Balance, Check or Slip #).
// Chase already reports debits as negative amounts.
func ParseChaseBank(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	t, err := readTable(content, "Posting Date", "Amount")
	if err != nil {
		return nil, err
	}

	res := domain.NewParseResult()
	res.Metadata["institution"] = "chase"
	accountName := "Chase Checking"

	latest := -1
	for i, row := range t.rows {
		date, err := normalize.ParseDate(t.get(row, "Posting Date"))
		if err != nil {
			skipRow(ctx, KindChaseBank, t.rowNumber(i), err)
			continue
		}
		desc := t.get(row, "Description")
		if err := requireField("Description", desc); err != nil {
			skipRow(ctx, KindChaseBank, t.rowNumber(i), err)
			continue
		}
		amount := normalize.ParseAmount(t.get(row, "Amount"))

		kind, ok := chaseBankTypes[strings.ToUpper(t.get(row, "Type"))]
		if !ok {
			kind = domain.ClassifyByKeywords(desc, amount)
		}

		tx := domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        kind,
			Balance:     normalize.OptionalAmount(t.get(row, "Balance")),
			AccountName: accountName,
			AccountType: domain.AccountChecking,
			Raw:         t.raw(row),
		}
		res.Transactions = append(res.Transactions, tx)

		if tx.Balance != nil && (latest < 0 || tx.Date.After(res.Transactions[latest].Date)) {
			latest = len(res.Transactions) - 1
		}
	}

	if latest >= 0 {
		tx := res.Transactions[latest]
		res.Balances = append(res.Balances, domain.AccountBalance{
			Date:        tx.Date,
			AccountName: accountName,
			AccountType: domain.AccountChecking,
			Balance:     *tx.Balance,
		})
	}
	return res, nil
}

var chaseCreditTypes = map[string]domain.TransactionKind{
	"PAYMENT":  domain.KindPayment,
	"SALE":     domain.KindPurchase,
	"PURCHASE": domain.KindPurchase,
	"RETURN":   domain.KindCredit,
	"FEE":      domain.KindFee,
	"INTEREST": domain.KindInterest,
}

// ParseChaseCredit reads a Chase card export (Transaction Date, Post Date,
// Description, Category, Type, Amount, Memo). Purchases are negative.
func ParseChaseCredit(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	t, err := readTable(content, "Transaction Date", "Amount")
	if err != nil {
		return nil, err
	}

	res := domain.NewParseResult()
	res.Metadata["institution"] = "chase"

	for i, row := range t.rows {
		date, err := normalize.ParseDate(t.get(row, "Transaction Date"))
		if err != nil {
			skipRow(ctx, KindChaseCredit, t.rowNumber(i), err)
			continue
		}
		desc := t.get(row, "Description")
		if err := requireField("Description", desc); err != nil {
			skipRow(ctx, KindChaseCredit, t.rowNumber(i), err)
			continue
		}
		amount := normalize.ParseAmount(t.get(row, "Amount"))

		kind, ok := chaseCreditTypes[strings.ToUpper(t.get(row, "Type"))]
		if !ok {
			kind = domain.KindBySign(amount)
		}

		res.Transactions = append(res.Transactions, domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        kind,
			Category:    t.get(row, "Category"),
			AccountName: "Chase Credit Card",
			AccountType: domain.AccountCreditCard,
			Raw:         t.raw(row),
		})
	}
	return res, nil
}
