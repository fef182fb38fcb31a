package schemainfer

import (
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var (
	symbolSynonyms      = []string{"Symbol", "Ticker", "Stock Symbol", "Security"}
	quantitySynonyms    = []string{"Quantity", "Shares", "Qty", "Units"}
	priceSynonyms       = []string{"Price", "Last Price", "Current Price", "Share Price"}
	valueSynonyms       = []string{"Market Value", "Current Value", "Value"}
	descriptionSynonyms = []string{"Description", "Name", "Security Name", "Security Description"}
)

// Heuristic emits a minimal holding for every row with a symbol and a
// positive quantity. It never fails and may return nothing.
func Heuristic(t *Table) []domain.InvestmentHolding {
	symbolCol := t.First(symbolSynonyms...)
	qtyCol := t.First(quantitySynonyms...)
	if symbolCol == "" || qtyCol == "" {
		return nil
	}
	priceCol := t.First(priceSynonyms...)
	valueCol := t.First(valueSynonyms...)
	descCol := t.First(descriptionSynonyms...)

	var out []domain.InvestmentHolding
	for _, row := range t.Rows {
		symbol := strings.ToUpper(strings.Trim(t.Value(row, symbolCol), "* "))
		if skippedSymbols[symbol] {
			continue
		}
		qty := normalize.ParseQuantity(t.Value(row, qtyCol))
		if !qty.IsPositive() {
			continue
		}
		h := domain.InvestmentHolding{
			Symbol:      symbol,
			Description: t.Value(row, descCol),
			Quantity:    qty,
			Price:       normalize.ParseAmount(t.Value(row, priceCol)),
			MarketValue: normalize.ParseAmount(t.Value(row, valueCol)),
			AssetType:   domain.AssetTypeForSymbol(symbol),
		}
		h.Reconcile()
		out = append(out, h)
	}
	return out
}
