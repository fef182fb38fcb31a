package parsers

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// Core money-market positions Fidelity reports as cash sweeps.
var fidelityCashSymbols = map[string]bool{
	"SPAXX": true,
	"FDRXX": true,
	"FZFXX": true,
	"FCASH": true,
	"CORE":  true,
}

var errNonPositiveQuantity = errors.New("quantity must be positive")

// ParseFidelity handles both Fidelity exports: the positions download
// (Symbol, Description, Quantity, Last Price, Current Value...) and the
// account history download (Run Date, Action, Symbol...).
func ParseFidelity(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	if t, err := readTable(content, "Run Date", "Action"); err == nil {
		return parseFidelityActivity(ctx, t), nil
	}
	t, err := readTable(content, "Symbol", "Quantity")
	if err != nil {
		t, err = readTable(content, "Symbol", "Current Value")
		if err != nil {
			return nil, err
		}
	}
	return parseFidelityPositions(ctx, t), nil
}

func parseFidelityPositions(ctx context.Context, t *table) *domain.ParseResult {
	res := domain.NewParseResult()
	res.Metadata["institution"] = "fidelity"
	res.Metadata["file_type"] = "holdings"

	for i, row := range t.rows {
		symbol := strings.ToUpper(strings.TrimSpace(strings.TrimRight(t.get(row, "Symbol"), "*")))
		if symbol == "" || strings.Contains(strings.ToUpper(symbol), "PENDING") {
			continue
		}

		accountName := t.get(row, "Account Name")
		h := domain.InvestmentHolding{
			Symbol:      symbol,
			Description: t.get(row, "Description"),
			Quantity:    normalize.ParseQuantity(t.get(row, "Quantity")),
			Price:       normalize.ParseAmount(t.get(row, "Last Price")),
			MarketValue: normalize.ParseAmount(t.get(row, "Current Value")),
			CostBasis:   normalize.OptionalAmount(t.get(row, "Cost Basis Total", "Cost Basis")),
			GainLoss:    normalize.OptionalAmount(t.get(row, "Total Gain/Loss Dollar", "Gain/Loss Dollar")),
			AccountName: accountName,
			AccountType: domain.AccountTypeFromName(accountName),
			AssetType:   domain.AssetTypeForSymbol(symbol),
		}
		if pct := t.get(row, "Total Gain/Loss Percent", "Gain/Loss Percent"); pct != "" && pct != "--" {
			p := normalize.ParsePercent(pct)
			h.GainLossPercent = &p
		}

		if fidelityCashSymbols[symbol] {
			h.AssetType = domain.AssetCash
			if h.Quantity.IsZero() {
				h.Quantity = h.MarketValue
			}
			if h.Price.IsZero() {
				h.Price = decimal.NewFromInt(1)
			}
		}

		if !h.Quantity.IsPositive() {
			skipRow(ctx, KindFidelity, t.rowNumber(i), errNonPositiveQuantity)
			continue
		}
		h.Reconcile()
		res.Holdings = append(res.Holdings, h)
	}
	return res
}

// fidelityActions is checked in order against the upper-cased Action text.
var fidelityActions = []struct {
	token string
	kind  domain.InvestmentKind
}{
	{"REINVEST", domain.InvestReinvest},
	{"DIVIDEND", domain.InvestDividend},
	{"DIV", domain.InvestDividend},
	{"BOUGHT", domain.InvestBuy},
	{"BUY", domain.InvestBuy},
	{"SOLD", domain.InvestSell},
	{"SELL", domain.InvestSell},
	{"INTEREST", domain.InvestInterest},
	{"FEE", domain.InvestFee},
	{"SPLIT", domain.InvestSplit},
	{"MERGER", domain.InvestMerger},
}

func fidelityAction(action string) domain.InvestmentKind {
	upper := strings.ToUpper(action)
	for _, a := range fidelityActions {
		if strings.Contains(upper, a.token) {
			return a.kind
		}
	}
	return domain.InvestBuy
}

func parseFidelityActivity(ctx context.Context, t *table) *domain.ParseResult {
	res := domain.NewParseResult()
	res.Metadata["institution"] = "fidelity"
	res.Metadata["file_type"] = "transactions"

	for i, row := range t.rows {
		date, err := normalize.ParseDate(t.get(row, "Run Date"))
		if err != nil {
			skipRow(ctx, KindFidelity, t.rowNumber(i), err)
			continue
		}
		action := t.get(row, "Action")
		if err := requireField("Action", action); err != nil {
			skipRow(ctx, KindFidelity, t.rowNumber(i), err)
			continue
		}

		fees := normalize.ParseAmount(t.get(row, "Fees")).Add(normalize.ParseAmount(t.get(row, "Commission")))
		res.InvestmentTransactions = append(res.InvestmentTransactions, domain.InvestmentTransaction{
			Date:        date,
			Symbol:      strings.ToUpper(t.get(row, "Symbol")),
			Description: t.get(row, "Security Description", "Description"),
			Kind:        fidelityAction(action),
			Quantity:    normalize.ParseQuantity(t.get(row, "Quantity")),
			Price:       normalize.ParseAmount(t.get(row, "Price")),
			Amount:      normalize.ParseAmount(t.get(row, "Amount")),
			Fees:        fees,
			AccountName: t.get(row, "Account", "Account Name"),
		})
	}
	return res
}
