package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

var ofxBankTypes = map[string]domain.TransactionKind{
	"DEBIT":       domain.KindDebit,
	"CREDIT":      domain.KindCredit,
	"INT":         domain.KindInterest,
	"DIV":         domain.KindDividend,
	"FEE":         domain.KindFee,
	"SRVCHG":      domain.KindFee,
	"DEP":         domain.KindDeposit,
	"DIRECTDEP":   domain.KindDeposit,
	"ATM":         domain.KindWithdrawal,
	"CASH":        domain.KindWithdrawal,
	"POS":         domain.KindPurchase,
	"CHECK":       domain.KindDebit,
	"DIRECTDEBIT": domain.KindDebit,
	"PAYMENT":     domain.KindPayment,
	"REPEATPMT":   domain.KindPayment,
	"XFER":        domain.KindTransfer,
}

// ParseOFX decodes OFX/QFX bank and credit card statements. OFX already uses
// negative amounts for money leaving the account.
func ParseOFX(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(StripBOM(content)))
	if err != nil {
		return nil, fmt.Errorf("ParseOFX: decoding %s: %w", filename, err)
	}

	res := domain.NewParseResult()
	res.Metadata["institution"] = strings.ToLower(string(resp.Signon.Org))

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		accountType := ofxAccountType(stmt.BankAcctFrom.AcctType.String())
		accountName := "Account " + lastFour(string(stmt.BankAcctFrom.AcctID))
		if stmt.BankTranList != nil {
			appendOFXTransactions(ctx, res, stmt.BankTranList.Transactions, accountName, accountType)
		}
		res.Balances = append(res.Balances, ofxBalance(stmt.DtAsOf, stmt.BalAmt, stmt.AvailBalAmt, accountName, accountType))
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		accountName := "Card " + lastFour(string(stmt.CCAcctFrom.AcctID))
		if stmt.BankTranList != nil {
			appendOFXTransactions(ctx, res, stmt.BankTranList.Transactions, accountName, domain.AccountCreditCard)
		}
		res.Balances = append(res.Balances, ofxBalance(stmt.DtAsOf, stmt.BalAmt, stmt.AvailBalAmt, accountName, domain.AccountCreditCard))
	}

	if len(resp.InvStmt) > 0 {
		res.Metadata["investment_statements"] = fmt.Sprint(len(resp.InvStmt))
	}
	return res, nil
}

func appendOFXTransactions(ctx context.Context, res *domain.ParseResult, txs []ofxgo.Transaction, accountName string, accountType domain.AccountType) {
	for i, tran := range txs {
		amount, err := ratToDecimal(tran.TrnAmt)
		if err != nil {
			skipRow(ctx, KindOFX, i+1, err)
			continue
		}

		desc := strings.TrimSpace(string(tran.Name))
		if desc == "" && tran.Payee != nil {
			desc = strings.TrimSpace(string(tran.Payee.Name))
		}
		memo := strings.TrimSpace(string(tran.Memo))
		if desc == "" {
			desc = memo
		}
		if desc == "" {
			skipRow(ctx, KindOFX, i+1, fmt.Errorf("Name: %w", errEmptyField))
			continue
		}

		kind, ok := ofxBankTypes[tran.TrnType.String()]
		if !ok {
			kind = domain.KindBySign(amount)
		}

		res.Transactions = append(res.Transactions, domain.BankTransaction{
			Date:        tran.DtPosted.Time,
			Description: desc,
			Amount:      amount,
			Kind:        kind,
			AccountName: accountName,
			AccountType: accountType,
			Raw: map[string]string{
				"FITID":    string(tran.FiTID),
				"TRNTYPE":  tran.TrnType.String(),
				"MEMO":     memo,
				"CHECKNUM": string(tran.CheckNum),
			},
		})
	}
}

func ofxBalance(asOf ofxgo.Date, bal ofxgo.Amount, avail *ofxgo.Amount, accountName string, accountType domain.AccountType) domain.AccountBalance {
	b := domain.AccountBalance{
		Date:        asOf.Time,
		AccountName: accountName,
		AccountType: accountType,
	}
	if d, err := ratToDecimal(bal); err == nil {
		b.Balance = d
	}
	if avail != nil {
		if d, err := ratToDecimal(*avail); err == nil {
			b.AvailableBalance = &d
		}
	}
	return b
}

// ratToDecimal rounds to whole cents, the precision records are rendered
// and exported at.
func ratToDecimal(a ofxgo.Amount) (decimal.Decimal, error) {
	return decimal.NewFromString(a.Rat.FloatString(2))
}

func ofxAccountType(acctType string) domain.AccountType {
	switch strings.ToUpper(acctType) {
	case "CHECKING":
		return domain.AccountChecking
	case "SAVINGS", "MONEYMRKT", "CD":
		return domain.AccountSavings
	case "CREDITLINE":
		return domain.AccountLoan
	}
	return domain.AccountOther
}

func lastFour(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
