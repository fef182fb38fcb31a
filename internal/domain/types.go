// Package domain holds the canonical financial records produced by every parser.
//
// Sign convention: a BankTransaction amount is positive for money flowing into
// the account and negative for money flowing out. Parsers for sources that
// report outflows as positive translate at the boundary with FromOutflowPositive.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a bank or card transaction.
type TransactionKind string

const (
	KindDebit      TransactionKind = "debit"
	KindCredit     TransactionKind = "credit"
	KindPayment    TransactionKind = "payment"
	KindPurchase   TransactionKind = "purchase"
	KindTransfer   TransactionKind = "transfer"
	KindFee        TransactionKind = "fee"
	KindInterest   TransactionKind = "interest"
	KindDividend   TransactionKind = "dividend"
	KindWithdrawal TransactionKind = "withdrawal"
	KindDeposit    TransactionKind = "deposit"
)

var transactionKinds = []TransactionKind{
	KindDebit, KindCredit, KindPayment, KindPurchase, KindTransfer,
	KindFee, KindInterest, KindDividend, KindWithdrawal, KindDeposit,
}

// ParseTransactionKind accepts any casing of a kind name.
func ParseTransactionKind(s string) (TransactionKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range transactionKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// InvestmentKind classifies a brokerage activity row.
type InvestmentKind string

const (
	InvestBuy      InvestmentKind = "buy"
	InvestSell     InvestmentKind = "sell"
	InvestDividend InvestmentKind = "dividend"
	InvestReinvest InvestmentKind = "reinvest"
	InvestSplit    InvestmentKind = "split"
	InvestMerger   InvestmentKind = "merger"
	InvestInterest InvestmentKind = "interest"
	InvestFee      InvestmentKind = "fee"
)

type AccountType string

const (
	AccountChecking       AccountType = "checking"
	AccountSavings        AccountType = "savings"
	AccountCreditCard     AccountType = "credit_card"
	AccountBrokerage      AccountType = "brokerage"
	AccountIRA            AccountType = "ira"
	AccountRothIRA        AccountType = "roth_ira"
	AccountTraditionalIRA AccountType = "traditional_ira"
	Account401k           AccountType = "401k"
	AccountMortgage       AccountType = "mortgage"
	AccountLoan           AccountType = "loan"
	AccountOther          AccountType = "other"
)

type AssetType string

const (
	AssetStock      AssetType = "stock"
	AssetETF        AssetType = "etf"
	AssetMutualFund AssetType = "mutual_fund"
	AssetBond       AssetType = "bond"
	AssetOption     AssetType = "option"
	AssetCash       AssetType = "cash"
	AssetCrypto     AssetType = "crypto"
	AssetOther      AssetType = "other"
)

// BankTransaction is one normalized bank or card line.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // positive = inflow, negative = outflow
	Kind        TransactionKind
	Balance     *decimal.Decimal // running balance after this line, when the source has one
	Category    string
	Merchant    string
	AccountName string
	AccountType AccountType
	Raw         map[string]string // original source columns
}

// IsOutflow reports whether money left the account.
func (t BankTransaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// InvestmentHolding is a point-in-time position.
type InvestmentHolding struct {
	Symbol          string
	Description     string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	MarketValue     decimal.Decimal
	CostBasis       *decimal.Decimal
	GainLoss        *decimal.Decimal
	GainLossPercent *decimal.Decimal
	AccountName     string
	AccountType     AccountType
	AssetType       AssetType
	AsOf            time.Time
}

// Reconcile fills derivable values: market value from quantity and price,
// cost basis from market value minus gain/loss, and gain/loss (plus its
// percent) from market value minus cost basis.
func (h *InvestmentHolding) Reconcile() {
	if h.MarketValue.IsZero() && !h.Quantity.IsZero() && !h.Price.IsZero() {
		h.MarketValue = h.Quantity.Mul(h.Price).Round(2)
	}
	if h.Price.IsZero() && !h.Quantity.IsZero() && !h.MarketValue.IsZero() {
		h.Price = h.MarketValue.Div(h.Quantity).Round(4)
	}
	if h.CostBasis == nil && h.GainLoss != nil {
		cb := h.MarketValue.Sub(*h.GainLoss)
		h.CostBasis = &cb
	}
	if h.GainLoss == nil && h.CostBasis != nil {
		gl := h.MarketValue.Sub(*h.CostBasis)
		h.GainLoss = &gl
	}
	if h.GainLossPercent == nil && h.GainLoss != nil && h.CostBasis != nil && !h.CostBasis.IsZero() {
		pct := h.GainLoss.Div(*h.CostBasis).Mul(decimal.NewFromInt(100)).Round(2)
		h.GainLossPercent = &pct
	}
}

// InvestmentTransaction is one brokerage activity row.
type InvestmentTransaction struct {
	Date        time.Time
	Symbol      string
	Description string
	Kind        InvestmentKind
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Fees        decimal.Decimal
	AccountName string
}

// AccountBalance is a balance snapshot.
type AccountBalance struct {
	Date             time.Time
	AccountName      string
	AccountType      AccountType
	Balance          decimal.Decimal
	AvailableBalance *decimal.Decimal
}

// ParseResult is what every parser returns for one file.
type ParseResult struct {
	Transactions           []BankTransaction
	Holdings               []InvestmentHolding
	InvestmentTransactions []InvestmentTransaction
	Balances               []AccountBalance
	Metadata               map[string]string
}

// NewParseResult returns an empty result with initialized metadata.
func NewParseResult() *ParseResult {
	return &ParseResult{Metadata: map[string]string{}}
}

// Empty reports whether no records were produced.
func (r *ParseResult) Empty() bool {
	return len(r.Transactions) == 0 && len(r.Holdings) == 0 &&
		len(r.InvestmentTransactions) == 0 && len(r.Balances) == 0
}

// FromOutflowPositive converts an amount from a source that reports money
// leaving the account as positive (aggregator feeds, Discover exports).
func FromOutflowPositive(amount decimal.Decimal) decimal.Decimal {
	return amount.Neg()
}
