package schemainfer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", TagEmpty},
		{"   ", TagEmpty},
		{"$1,234.56", TagDecimal},
		{"(50.00)", TagDecimal},
		{"42", TagInteger},
		{"-7", TagInteger},
		{"01/15/2024", "[DATE:MM/DD/YYYY]"},
		{"1/5/2024", "[DATE:MM/DD/YYYY]"},
		{"2024-01-15", "[DATE:YYYY-MM-DD]"},
		{"01-15-2024", "[DATE:MM-DD-YYYY]"},
		{"Jan 15, 2024", "[DATE:Mon DD, YYYY]"},
		{"AAPL", TagSymbol},
		{"NAN", TagSymbol},
		{"A", TagText},
		{"Apple Inc", TagText},
		{"FXAIXX", TagText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildRequest_NoRealValuesInPrompt(t *testing.T) {
	headers := []string{"Ticker", "Units", "Value", "Note"}
	rows := [][]string{
		{"AAPL", "10", "1,892.30", "my secret note"},
		{"MSFT", "5", "2,051.15", "rebalance"},
		{"VTI", "3", "740.01", ""},
		{"GOOG", "1", "141.80", "fourth row"},
	}

	req := BuildRequest(headers, rows)
	if len(req.Samples) != MaxSamples {
		t.Fatalf("expected %d samples, got %d", MaxSamples, len(req.Samples))
	}
	if req.RowCount != 4 {
		t.Errorf("RowCount = %d", req.RowCount)
	}

	prompt := req.Prompt()
	for _, secret := range []string{"AAPL", "1,892.30", "my secret note", "2,051.15", "GOOG", "740.01"} {
		if strings.Contains(prompt, secret) {
			t.Errorf("prompt leaks value %q", secret)
		}
	}
	for _, want := range []string{"Ticker", "[SYMBOL]", "[DECIMAL]", "[INTEGER]", "[EMPTY]"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDecodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  bool
		wantType FileType
	}{
		{
			name:     "holdings with prose",
			text:     "Here you go:\n```json\n{\"file_type\": \"holdings\", \"schema\": {\"symbol\": {\"column\": \"Ticker\"}, \"quantity\": {\"column\": \"Units\"}}}\n```",
			wantType: FileHoldings,
		},
		{
			name:     "transactions uppercase type",
			text:     `{"file_type": "TRANSACTIONS", "schema": {"date": {"column": "When", "format": "YYYY-MM-DD"}, "amount": {"column": "Amt"}}}`,
			wantType: FileTransactions,
		},
		{name: "no json", text: "I cannot help with that", wantErr: true},
		{name: "broken json", text: `{"file_type": "holdings", "schema": {`, wantErr: true},
		{name: "unknown type", text: `{"file_type": "invoices", "schema": {}}`, wantErr: true},
		{name: "schema not object", text: `{"file_type": "holdings", "schema": []}`, wantErr: true},
		{name: "missing schema", text: `{"file_type": "holdings"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMapping(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeMapping() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrSchemaInference) {
					t.Errorf("expected ErrSchemaInference, got %v", err)
				}
				return
			}
			if m.FileType != tt.wantType {
				t.Errorf("FileType = %s, want %s", m.FileType, tt.wantType)
			}
			if m.Raw != tt.text {
				t.Error("Raw should hold the original response")
			}
		})
	}
}

func TestDecodeMapping_DerivedCostBasis(t *testing.T) {
	m, err := DecodeMapping(`{"file_type": "holdings", "schema": {
		"symbol": {"column": "Symbol"},
		"cost_basis": {"calculation": "market_value - gain_loss", "uses_columns": ["Current Value", "Gain"]}
	}}`)
	if err != nil {
		t.Fatalf("DecodeMapping() error = %v", err)
	}
	cb := m.Field("cost_basis")
	if cb.Calculation != CalcMarketValueMinusGainLoss {
		t.Errorf("Calculation = %q", cb.Calculation)
	}
	if len(cb.UsesColumns) != 2 || cb.UsesColumns[0] != "Current Value" || cb.UsesColumns[1] != "Gain" {
		t.Errorf("UsesColumns = %v", cb.UsesColumns)
	}
}

const holdingsCSV = "Symbol,Qty,Current Value,Gain\n" +
	"vti,4,\"$1,000.00\",+200.00\n" +
	"Total,,\"$1,000.00\",\n" +
	"N/A,1,5.00,\n" +
	"BND,0,0,0\n" +
	"FXAIXX,2,300,\n"

func holdingsMapping() *Mapping {
	return &Mapping{
		FileType: FileHoldings,
		Fields: map[string]FieldSpec{
			"symbol":       {Column: "Symbol"},
			"quantity":     {Column: "Qty"},
			"market_value": {Column: "Current Value"},
			"gain_loss":    {Column: "Gain"},
			"cost_basis":   {Calculation: CalcMarketValueMinusGainLoss, UsesColumns: []string{"Current Value", "Gain"}},
		},
	}
}

func TestApplyHoldings(t *testing.T) {
	tbl, err := ReadTable([]byte(holdingsCSV))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	got := ApplyHoldings(context.Background(), holdingsMapping(), tbl)
	if len(got) != 2 {
		t.Fatalf("expected 2 holdings, got %d: %+v", len(got), got)
	}

	vti := got[0]
	if vti.Symbol != "VTI" || vti.AssetType != domain.AssetStock {
		t.Errorf("vti = %+v", vti)
	}
	if vti.CostBasis == nil || !vti.CostBasis.Equal(dec("800")) {
		t.Errorf("CostBasis = %v, want 800", vti.CostBasis)
	}
	if !vti.Price.Equal(dec("250")) {
		t.Errorf("Price = %s, want derived 250", vti.Price)
	}
	if got[1].AssetType != domain.AssetMutualFund {
		t.Errorf("long symbol asset type = %s", got[1].AssetType)
	}
}

func TestApplyTransactions(t *testing.T) {
	csv := "When,What,Amt,Kind,Cat\n" +
		"2024-02-01,Coffee,4.50,SALE,Food\n" +
		"2024-02-02,Refund,-10.00,,Shopping\n" +
		"bad date,Oops,1.00,,\n" +
		"2024-02-03,Wire,100.00,ACH,\n"
	tbl, err := ReadTable([]byte(csv))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	m := &Mapping{
		FileType: FileTransactions,
		Fields: map[string]FieldSpec{
			"date":             {Column: "When", Format: "YYYY-MM-DD"},
			"description":      {Column: "What"},
			"amount":           {Column: "Amt", SignConvention: PositiveForDebits},
			"transaction_type": {Column: "Kind", Default: "DEBIT"},
			"category":         {Column: "Cat"},
		},
	}

	got := ApplyTransactions(context.Background(), m, tbl)
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	if !got[0].Amount.Equal(dec("-4.50")) || got[0].Kind != domain.KindPurchase || got[0].Category != "Food" {
		t.Errorf("coffee = %+v", got[0])
	}
	if !got[1].Amount.Equal(dec("10")) || got[1].Kind != domain.KindCredit {
		t.Errorf("refund = %+v", got[1])
	}
	if got[2].Kind != domain.KindTransfer {
		t.Errorf("wire kind = %s", got[2].Kind)
	}
}

func TestHeuristic(t *testing.T) {
	tbl, err := ReadTable([]byte("Ticker,Shares,Price\nAAPL,10,189.23\nTOTAL,10,\nMSFT,-1,400\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := Heuristic(tbl)
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("Heuristic() = %+v", got)
	}
	if !got[0].MarketValue.Equal(dec("1892.3")) {
		t.Errorf("MarketValue = %s", got[0].MarketValue)
	}

	none, _ := ReadTable([]byte("a,b\n1,2\n"))
	if got := Heuristic(none); len(got) != 0 {
		t.Errorf("expected nothing without symbol/quantity columns, got %+v", got)
	}
}

func TestParser_Inferred(t *testing.T) {
	var seen Request
	p := NewParser(PortFunc(func(ctx context.Context, req Request) (*Mapping, error) {
		seen = req
		m := holdingsMapping()
		m.Raw = `{"file_type":"holdings"}`
		return m, nil
	}))

	res, err := p.Parse(context.Background(), []byte(holdingsCSV), "positions.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Metadata[MetaSchemaSource] != "inferred" || res.Metadata[MetaSchemaMapping] == "" {
		t.Errorf("metadata = %v", res.Metadata)
	}
	if len(res.Holdings) != 2 {
		t.Errorf("holdings = %d", len(res.Holdings))
	}
	for _, sample := range seen.Samples {
		for col, v := range sample {
			if !strings.HasPrefix(v, "[") {
				t.Errorf("unsanitized sample %s=%q sent to port", col, v)
			}
		}
	}
}

func TestParser_Fallback(t *testing.T) {
	tests := []struct {
		name string
		port Port
	}{
		{"no backend", nil},
		{"backend error", PortFunc(func(ctx context.Context, req Request) (*Mapping, error) {
			return nil, errors.New("connection refused")
		})},
		{"unparseable", ModelPort{Model: stubModel("not json at all")}},
		{"mapping to missing column", PortFunc(func(ctx context.Context, req Request) (*Mapping, error) {
			return &Mapping{FileType: FileHoldings, Fields: map[string]FieldSpec{
				"symbol": {Column: "Nope"}, "quantity": {Column: "Qty"},
			}}, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Parser{Port: tt.port}
			res, err := p.Parse(context.Background(), []byte("Ticker,Shares\nAAPL,3\n"), "x.csv")
			if err != nil {
				t.Fatalf("Parse() must not fail on inference problems: %v", err)
			}
			if res.Metadata[MetaSchemaSource] != "heuristic" || res.Metadata[MetaFallbackReason] == "" {
				t.Errorf("metadata = %v", res.Metadata)
			}
			if len(res.Holdings) != 1 {
				t.Errorf("holdings = %+v", res.Holdings)
			}
		})
	}
}

type stubModel string

func (s stubModel) Generate(ctx context.Context, prompt string) (string, error) {
	return string(s), nil
}
