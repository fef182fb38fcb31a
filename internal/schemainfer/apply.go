package schemainfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var skippedSymbols = map[string]bool{"": true, "N/A": true, "TOTAL": true}

// Type column values that are not canonical kind names.
var typeAliases = map[string]domain.TransactionKind{
	"SALE":       domain.KindPurchase,
	"PURCHASE":   domain.KindPurchase,
	"POS":        domain.KindPurchase,
	"ACH":        domain.KindTransfer,
	"XFER":       domain.KindTransfer,
	"WITHDRAWAL": domain.KindWithdrawal,
	"ATM":        domain.KindWithdrawal,
	"DEPOSIT":    domain.KindDeposit,
	"DEP":        domain.KindDeposit,
	"RETURN":     domain.KindCredit,
	"REFUND":     domain.KindCredit,
}

// Validate checks that the mapping names the columns each file type needs
// and that those columns exist in t.
func (m *Mapping) Validate(t *Table) error {
	var required []string
	switch m.FileType {
	case FileHoldings:
		required = []string{"symbol", "quantity"}
	case FileTransactions:
		required = []string{"date", "amount"}
	default:
		return fmt.Errorf("%w: unrecognized file type %q", domain.ErrSchemaInference, m.FileType)
	}
	for _, f := range required {
		col := m.Field(f).Column
		if !t.Has(col) {
			return fmt.Errorf("%w: field %s maps to missing column %q", domain.ErrSchemaInference, f, col)
		}
	}
	return nil
}

// ApplyHoldings maps every row of t into holdings using m.
func ApplyHoldings(ctx context.Context, m *Mapping, t *Table) []domain.InvestmentHolding {
	log := logger.Component(ctx, "schemainfer")

	var out []domain.InvestmentHolding
	for i, row := range t.Rows {
		symbol := strings.ToUpper(strings.Trim(t.Value(row, m.Field("symbol").Column), "* "))
		if skippedSymbols[symbol] {
			continue
		}
		qty := normalize.ParseQuantity(t.Value(row, m.Field("quantity").Column))
		if !qty.IsPositive() {
			log.Warn().Err(&domain.MalformedRowError{Row: i + 2, Err: errors.New("quantity must be positive")}).Msg("skipping holding row")
			continue
		}

		h := domain.InvestmentHolding{
			Symbol:      symbol,
			Description: t.Value(row, m.Field("description").Column),
			Quantity:    qty,
			Price:       normalize.ParseAmount(t.Value(row, m.Field("price").Column)),
			MarketValue: normalize.ParseAmount(t.Value(row, m.Field("market_value").Column)),
			GainLoss:    optional(t, row, m.Field("gain_loss").Column),
			AssetType:   domain.AssetTypeForSymbol(symbol),
		}
		h.CostBasis = costBasis(t, row, m.Field("cost_basis"))
		h.Reconcile()
		out = append(out, h)
	}
	return out
}

func costBasis(t *Table, row []string, spec FieldSpec) *decimal.Decimal {
	if spec.Column != "" && t.Has(spec.Column) {
		return optional(t, row, spec.Column)
	}
	if strings.EqualFold(strings.TrimSpace(spec.Calculation), CalcMarketValueMinusGainLoss) && len(spec.UsesColumns) == 2 {
		mv := t.Value(row, spec.UsesColumns[0])
		gl := t.Value(row, spec.UsesColumns[1])
		if mv == "" || gl == "" {
			return nil
		}
		cb := normalize.ParseAmount(mv).Sub(normalize.ParseAmount(gl))
		return &cb
	}
	return nil
}

func optional(t *Table, row []string, column string) *decimal.Decimal {
	if column == "" {
		return nil
	}
	return normalize.OptionalAmount(t.Value(row, column))
}

// ApplyTransactions maps every row of t into bank transactions using m.
// Amounts are converted so inflows are positive.
func ApplyTransactions(ctx context.Context, m *Mapping, t *Table) []domain.BankTransaction {
	log := logger.Component(ctx, "schemainfer")

	dateSpec := m.Field("date")
	amountSpec := m.Field("amount")
	typeSpec := m.Field("transaction_type")

	var out []domain.BankTransaction
	for i, row := range t.Rows {
		date, err := normalize.ParseDateLayout(t.Value(row, dateSpec.Column), dateSpec.Format)
		if err != nil {
			log.Warn().Err(&domain.MalformedRowError{Row: i + 2, Err: err}).Msg("skipping transaction row")
			continue
		}
		desc := t.Value(row, m.Field("description").Column)
		if desc == "" {
			desc = t.Value(row, m.Field("merchant").Column)
		}

		amount := normalize.ParseAmount(t.Value(row, amountSpec.Column))
		if amountSpec.SignConvention == PositiveForDebits {
			amount = domain.FromOutflowPositive(amount)
		}

		out = append(out, domain.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Kind:        mapKind(t.Value(row, typeSpec.Column), typeSpec.Default, amount),
			Category:    t.Value(row, m.Field("category").Column),
			Merchant:    t.Value(row, m.Field("merchant").Column),
		})
	}
	return out
}

func mapKind(value, def string, amount decimal.Decimal) domain.TransactionKind {
	if value != "" {
		if k, ok := domain.ParseTransactionKind(value); ok {
			return k
		}
		if k, ok := typeAliases[strings.ToUpper(strings.TrimSpace(value))]; ok {
			return k
		}
	}
	if k, ok := domain.ParseTransactionKind(def); ok && k != domain.KindDebit && k != domain.KindCredit {
		return k
	}
	return domain.KindBySign(amount)
}
