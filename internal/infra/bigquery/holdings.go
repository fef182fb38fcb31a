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

type HoldingRow struct {
	HoldingID    string `bigquery:"holding_id"`     // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED

	Symbol      string `bigquery:"symbol"`      // NULLABLE
	Description string `bigquery:"description"` // NULLABLE

	Quantity    *big.Rat `bigquery:"quantity"`     // REQUIRED NUMERIC
	Price       *big.Rat `bigquery:"price"`        // REQUIRED NUMERIC
	MarketValue *big.Rat `bigquery:"market_value"` // REQUIRED NUMERIC
	CostBasis   *big.Rat `bigquery:"cost_basis"`   // NULLABLE NUMERIC
	GainLoss    *big.Rat `bigquery:"gain_loss"`    // NULLABLE NUMERIC

	AccountName bigquery.NullString `bigquery:"account_name"` // NULLABLE
	AccountType bigquery.NullString `bigquery:"account_type"` // NULLABLE
	AssetType   bigquery.NullString `bigquery:"asset_type"`   // NULLABLE
	AsOf        bigquery.NullDate   `bigquery:"as_of"`        // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type InvestmentTransactionRow struct {
	InvestmentTransactionID string `bigquery:"investment_transaction_id"` // REQUIRED
	DocumentID              string `bigquery:"document_id"`               // REQUIRED
	ParsingRunID            string `bigquery:"parsing_run_id"`            // REQUIRED

	TradeDate   civil.Date          `bigquery:"trade_date"`  // REQUIRED
	Symbol      bigquery.NullString `bigquery:"symbol"`      // NULLABLE
	Description string              `bigquery:"description"` // NULLABLE
	Kind        string              `bigquery:"kind"`        // REQUIRED

	Quantity *big.Rat `bigquery:"quantity"` // NULLABLE NUMERIC
	Price    *big.Rat `bigquery:"price"`    // NULLABLE NUMERIC
	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Fees     *big.Rat `bigquery:"fees"`     // NULLABLE NUMERIC

	AccountName bigquery.NullString `bigquery:"account_name"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type BalanceRow struct {
	BalanceID    string `bigquery:"balance_id"`     // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED

	BalanceDate      civil.Date          `bigquery:"balance_date"`      // REQUIRED
	AccountName      bigquery.NullString `bigquery:"account_name"`      // NULLABLE
	AccountType      bigquery.NullString `bigquery:"account_type"`      // NULLABLE
	Balance          *big.Rat            `bigquery:"balance"`           // REQUIRED NUMERIC
	AvailableBalance *big.Rat            `bigquery:"available_balance"` // NULLABLE NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewHoldingRows converts positions for export.
func NewHoldingRows(documentID, parsingRunID string, holdings []domain.InvestmentHolding, now time.Time) []*HoldingRow {
	rows := make([]*HoldingRow, 0, len(holdings))
	for _, h := range holdings {
		h.Reconcile()
		row := &HoldingRow{
			HoldingID:    uuid.NewString(),
			DocumentID:   documentID,
			ParsingRunID: parsingRunID,
			Symbol:       h.Symbol,
			Description:  h.Description,
			Quantity:     h.Quantity.Rat(),
			Price:        h.Price.Rat(),
			MarketValue:  h.MarketValue.Rat(),
			CostBasis:    optionalRat(h.CostBasis),
			GainLoss:     optionalRat(h.GainLoss),
			AccountName:  nullString(h.AccountName),
			AccountType:  nullString(string(h.AccountType)),
			AssetType:    nullString(string(h.AssetType)),
			CreatedTS:    now,
		}
		if !h.AsOf.IsZero() {
			row.AsOf = bigquery.NullDate{Date: civil.DateOf(h.AsOf), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// NewInvestmentTransactionRows converts brokerage activity for export. Zero
// quantity, price and fees are stored as NULL.
func NewInvestmentTransactionRows(documentID, parsingRunID string, txns []domain.InvestmentTransaction, now time.Time) []*InvestmentTransactionRow {
	rows := make([]*InvestmentTransactionRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, &InvestmentTransactionRow{
			InvestmentTransactionID: uuid.NewString(),
			DocumentID:              documentID,
			ParsingRunID:            parsingRunID,
			TradeDate:               civil.DateOf(t.Date),
			Symbol:                  nullString(t.Symbol),
			Description:             t.Description,
			Kind:                    string(t.Kind),
			Quantity:                nonZeroRat(t.Quantity),
			Price:                   nonZeroRat(t.Price),
			Amount:                  t.Amount.Rat(),
			Fees:                    nonZeroRat(t.Fees),
			AccountName:             nullString(t.AccountName),
			CreatedTS:               now,
		})
	}
	return rows
}

// NewBalanceRows converts statement balances for export.
func NewBalanceRows(documentID, parsingRunID string, balances []domain.AccountBalance, now time.Time) []*BalanceRow {
	rows := make([]*BalanceRow, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, &BalanceRow{
			BalanceID:        uuid.NewString(),
			DocumentID:       documentID,
			ParsingRunID:     parsingRunID,
			BalanceDate:      civil.DateOf(b.Date),
			AccountName:      nullString(b.AccountName),
			AccountType:      nullString(string(b.AccountType)),
			Balance:          b.Balance.Rat(),
			AvailableBalance: optionalRat(b.AvailableBalance),
			CreatedTS:        now,
		})
	}
	return rows
}

func nonZeroRat(d decimal.Decimal) *big.Rat {
	if d.IsZero() {
		return nil
	}
	return d.Rat()
}

func optionalRat(d *decimal.Decimal) *big.Rat {
	if d == nil {
		return nil
	}
	return d.Rat()
}
