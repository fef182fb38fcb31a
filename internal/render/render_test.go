package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/recurring"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// outline counts headings per level and list items in md.
func outline(t *testing.T, md string) (map[int]int, int) {
	t.Helper()
	src := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	headings := map[int]int{}
	items := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			headings[v.Level]++
		case *ast.ListItem:
			items++
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		t.Fatalf("ast.Walk: %v", err)
	}
	return headings, items
}

func toHTML(t *testing.T, md string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		t.Fatalf("goldmark.Convert: %v", err)
	}
	return buf.String()
}

func sampleTransactions() []domain.BankTransaction {
	return []domain.BankTransaction{
		{Date: day("2024-01-20"), Description: "PAYROLL ACME", Amount: dec("2500.00"), Kind: domain.KindDeposit},
		{Date: day("2024-01-15"), Description: "Netflix: Monthly (Premium)", Amount: dec("-15.99"), Kind: domain.KindPurchase},
		{Date: day("2024-01-18"), Description: "Rent\nJanuary", Amount: dec("-1200.00")},
	}
}

func TestFormatTransactionLine(t *testing.T) {
	tests := []struct {
		name string
		txn  domain.BankTransaction
		want string
	}{
		{
			name: "outflow",
			txn:  domain.BankTransaction{Date: day("2024-01-15"), Description: "Netflix", Amount: dec("-15.99"), Kind: domain.KindPurchase},
			want: "- **2024-01-15** - Netflix: -$15.99 (purchase)",
		},
		{
			name: "inflow with thousands",
			txn:  domain.BankTransaction{Date: day("2024-02-01"), Description: "Payroll", Amount: dec("2500"), Kind: domain.KindDeposit},
			want: "- **2024-02-01** - Payroll: +$2,500.00 (deposit)",
		},
		{
			name: "sanitized description and default kind",
			txn:  domain.BankTransaction{Date: day("2024-02-02"), Description: "Shop: A (B)\nC", Amount: dec("-1")},
			want: "- **2024-02-02** - Shop - A [B] C: -$1.00 (debit)",
		},
		{
			name: "empty description",
			txn:  domain.BankTransaction{Date: day("2024-02-03"), Amount: dec("3.50"), Kind: domain.KindCredit},
			want: "- **2024-02-03** - Unknown: +$3.50 (credit)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTransactionLine(tt.txn); got != tt.want {
				t.Errorf("FormatTransactionLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTransactions_RoundTrip(t *testing.T) {
	txns := sampleTransactions()
	md := RenderTransactions("Chase Checking", Period(txns), txns)

	if !strings.HasPrefix(md, "# Chase Checking - Transactions for 2024-01\n") {
		t.Errorf("unexpected header:\n%s", md)
	}
	for _, want := range []string{"**Total Transactions:** 3", "**Total Spent:** $1,215.99", "**Total Received:** $2,500.00"} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}

	got := ParseTransactions(md)
	if len(got) != len(txns) {
		t.Fatalf("ParseTransactions() returned %d rows, want %d", len(got), len(txns))
	}
	// Rendered oldest first.
	want := []struct {
		date, desc, amount string
		kind               domain.TransactionKind
	}{
		{"2024-01-15", "Netflix - Monthly [Premium]", "-15.99", domain.KindPurchase},
		{"2024-01-18", "Rent January", "-1200.00", domain.KindDebit},
		{"2024-01-20", "PAYROLL ACME", "2500.00", domain.KindDeposit},
	}
	for i, w := range want {
		g := got[i]
		if g.Date.Format("2006-01-02") != w.date {
			t.Errorf("row %d date = %s, want %s", i, g.Date.Format("2006-01-02"), w.date)
		}
		if g.Description != w.desc {
			t.Errorf("row %d description = %q, want %q", i, g.Description, w.desc)
		}
		if !g.Amount.Equal(dec(w.amount)) {
			t.Errorf("row %d amount = %s, want %s", i, g.Amount, w.amount)
		}
		if g.Kind != w.kind {
			t.Errorf("row %d kind = %s, want %s", i, g.Kind, w.kind)
		}
	}
}

func TestRenderTransactions_Markdown(t *testing.T) {
	md := RenderTransactions("Card", "2024-01", sampleTransactions())
	headings, items := outline(t, md)
	if headings[1] != 1 || headings[2] != 1 {
		t.Errorf("headings = %v, want one h1 and one h2", headings)
	}
	if items != 3 {
		t.Errorf("list items = %d, want 3", items)
	}
	html := toHTML(t, md)
	if !strings.Contains(html, "<li><strong>2024-01-15</strong> - Netflix - Monthly [Premium]: -$15.99 (purchase)</li>") {
		t.Errorf("transaction list item not rendered as expected:\n%s", html)
	}
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  string
	}{
		{"empty", nil, ""},
		{"single month", []string{"2024-03-31", "2024-03-01"}, "2024-03"},
		{"range", []string{"2024-03-28", "2024-01-05", "2024-02-10"}, "2024-01-05 to 2024-03-28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txns []domain.BankTransaction
			for _, d := range tt.dates {
				txns = append(txns, domain.BankTransaction{Date: day(d)})
			}
			if got := Period(txns); got != tt.want {
				t.Errorf("Period() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTransactions_IgnoresOtherLines(t *testing.T) {
	md := "# X\n\n- not a transaction\n- **2024-13-01** - Bad: -$1.00 (debit)\n- **2024-01-02** - Ok: +$1.00 (bogus)\n"
	got := ParseTransactions(md)
	if len(got) != 1 {
		t.Fatalf("ParseTransactions() returned %d rows, want 1", len(got))
	}
	if got[0].Kind != domain.KindCredit {
		t.Errorf("unknown kind should fall back by sign, got %s", got[0].Kind)
	}
}

func TestRenderHoldings_RoundTrip(t *testing.T) {
	gl := dec("7367.49")
	loss := dec("-50.00")
	holdings := []domain.InvestmentHolding{
		{Symbol: "vti", Description: "Vanguard Total Stock (ETF)", Quantity: dec("100"), Price: dec("73.97"), MarketValue: dec("7397.49"), GainLoss: &gl},
		{Symbol: "FXAIX", Description: "Fidelity 500 Index", Quantity: dec("2.5"), Price: dec("180.00"), GainLoss: &loss},
		{Description: "Cash Sweep", Quantity: dec("1000"), Price: dec("1"), MarketValue: dec("1000")},
	}
	md := RenderHoldings("Brokerage", holdings)

	for _, want := range []string{
		"#### Vanguard Total Stock [ETF] (VTI)",
		"- **Quantity:** 100.0000 shares",
		"- **Price:** $73.97 per share",
		"- **Value:** $7,397.49",
		"- **Gain/Loss:** +$7,367.49 (+24558.30%)",
		"- **Gain/Loss:** -$50.00 (-10.00%)",
		"#### Cash Sweep\n",
		"**Total Value:** $8,847.49",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}

	got := ParseHoldings(md)
	if len(got) != 3 {
		t.Fatalf("ParseHoldings() returned %d holdings, want 3", len(got))
	}
	if got[0].Symbol != "VTI" || got[0].Description != "Vanguard Total Stock [ETF]" {
		t.Errorf("holding 0 = %q (%q)", got[0].Description, got[0].Symbol)
	}
	if !got[0].Quantity.Equal(dec("100")) || !got[0].Price.Equal(dec("73.97")) || !got[0].MarketValue.Equal(dec("7397.49")) {
		t.Errorf("holding 0 numbers = %s x %s = %s", got[0].Quantity, got[0].Price, got[0].MarketValue)
	}
	if got[0].GainLoss == nil || !got[0].GainLoss.Equal(gl) {
		t.Errorf("holding 0 gain/loss = %v, want %s", got[0].GainLoss, gl)
	}
	if got[0].CostBasis == nil || !got[0].CostBasis.Equal(dec("30.00")) {
		t.Errorf("holding 0 cost basis = %v, want 30.00", got[0].CostBasis)
	}
	if got[1].GainLossPercent == nil || !got[1].GainLossPercent.Equal(dec("-10")) {
		t.Errorf("holding 1 pct = %v, want -10", got[1].GainLossPercent)
	}
	if !got[1].MarketValue.Equal(dec("450")) {
		t.Errorf("holding 1 value = %s, want 450 (reconciled)", got[1].MarketValue)
	}
	if got[2].Symbol != "" || got[2].GainLoss != nil {
		t.Errorf("holding 2 = %+v, want no symbol and no gain/loss", got[2])
	}
}

func TestRenderHoldings_Markdown(t *testing.T) {
	gl := dec("1")
	md := RenderHoldings("B", []domain.InvestmentHolding{
		{Symbol: "AAPL", Description: "Apple Inc", Quantity: dec("1"), Price: dec("10"), GainLoss: &gl},
	})
	headings, items := outline(t, md)
	if headings[1] != 1 || headings[2] != 1 || headings[4] != 1 {
		t.Errorf("headings = %v", headings)
	}
	if items != 4 {
		t.Errorf("list items = %d, want 4", items)
	}
	if !strings.Contains(toHTML(t, md), "<h4>Apple Inc (AAPL)</h4>") {
		t.Error("security heading not rendered as h4")
	}
}

func TestRenderInvestmentTransactions(t *testing.T) {
	txns := []domain.InvestmentTransaction{
		{Date: day("2024-01-10"), Symbol: "vti", Description: "DIVIDEND RECEIVED", Kind: domain.InvestDividend, Amount: dec("12.34")},
		{Date: day("2024-01-05"), Symbol: "VTI", Description: "YOU BOUGHT", Kind: domain.InvestBuy,
			Quantity: dec("2"), Price: dec("240"), Fees: dec("0.10"), Amount: dec("-480.10")},
	}
	md := RenderInvestmentTransactions("ROTH IRA", txns)

	for _, want := range []string{
		"# ROTH IRA - Investment Activity\n",
		"**Total Activities:** 2",
		"**Net Amount:** -$467.76",
		"**Total Fees:** $0.10",
		"- **2024-01-05** - YOU BOUGHT VTI | 2.0000 shares @ $240.00 | -$480.10 (buy)\n- **2024-01-10** - DIVIDEND RECEIVED VTI | +$12.34 (dividend)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
	if got := ParseTransactions(md); len(got) != 0 {
		t.Errorf("activity lines parsed as bank transactions: %+v", got)
	}
	if _, items := outline(t, md); items != 2 {
		t.Errorf("list items = %d, want 2", items)
	}
}

func TestRenderBalances(t *testing.T) {
	avail := dec("1200")
	balances := []domain.AccountBalance{
		{Date: day("2024-01-31"), AccountName: "Visa", AccountType: domain.AccountCreditCard, Balance: dec("-500"), AvailableBalance: &avail},
		{Date: day("2024-01-15"), AccountName: "Checking", Balance: dec("900")},
		{Date: day("2024-01-31"), AccountName: "Checking", AccountType: domain.AccountChecking, Balance: dec("1234.56")},
	}
	md := RenderBalances("Test Bank", balances)

	want := "## Balances\n\n" +
		"- **2024-01-31** - Checking [checking]: $1,234.56\n" +
		"- **2024-01-15** - Checking: $900.00\n" +
		"- **2024-01-31** - Visa [credit_card]: -$500.00 | available $1,200.00\n"
	if !strings.Contains(md, want) {
		t.Errorf("balances section mismatch, got:\n%s", md)
	}
	if got := ParseTransactions(md); len(got) != 0 {
		t.Errorf("balance lines parsed as bank transactions: %+v", got)
	}
}

func TestRenderTaxForm_MasksIdentifiers(t *testing.T) {
	r := &taxform.ExtractionResult{
		FormType: taxform.FormW2,
		Fields: map[string]any{
			"employee_ssn":            "123-45-6789",
			"employer_ein":            "12-3456789",
			"employee_name":           "John Smith",
			"employer_name":           "Acme Corp",
			"wages_tips_compensation": dec("75000.00"),
			"statutory_employee":      false,
			"box_12_codes":            []taxform.Box12Code{{Code: "D", Amount: dec("5000")}},
		},
		Confidence:  map[string]float64{"wages_tips_compensation": 0.95, "employer_name": 0.9},
		Mean:        0.9,
		Method:      taxform.MethodStructured,
		NeedsReview: false,
		Trace:       []taxform.Attempt{{Method: taxform.MethodStructured, Confidence: 0.9, Fields: 7}},
	}
	md := RenderTaxForm("acme-w2.pdf", r)

	for _, leak := range []string{"123-45-6789", "12-3456789", "John Smith", "_hash"} {
		if strings.Contains(md, leak) {
			t.Errorf("rendered form contains %q:\n%s", leak, md)
		}
	}
	for _, want := range []string{
		"# Form W2 - acme-w2.pdf",
		"**Needs Review:** no",
		"- **employee_ssn_masked:** ***-**-6789",
		"- **employee_name_masked:** [EMPLOYEE_NAME]",
		"- **wages_tips_compensation:** $75,000.00 (0.95)",
		"- **statutory_employee:** no",
		"- **box_12_codes:** D $5,000.00",
		"- **structured_pdf:** 0.90",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}

func TestTaxFormContent_IgnoresTitleAndTrace(t *testing.T) {
	r := &taxform.ExtractionResult{
		FormType:   taxform.FormW2,
		Fields:     map[string]any{"employer_name": "Acme Corp", "wages_tips_compensation": dec("75000.00")},
		Confidence: map[string]float64{"wages_tips_compensation": 0.95},
		Mean:       0.95,
		Method:     taxform.MethodStructured,
		Trace:      []taxform.Attempt{{Method: taxform.MethodStructured, Confidence: 0.95, Fields: 2}},
	}
	retried := *r
	retried.Trace = []taxform.Attempt{
		{Method: taxform.MethodLayout, Error: "timeout after 30s"},
		{Method: taxform.MethodStructured, Confidence: 0.95, Fields: 2},
	}

	content := TaxFormContent(r)
	if content != TaxFormContent(&retried) {
		t.Errorf("trace changed the content:\n%s\n---\n%s", content, TaxFormContent(&retried))
	}
	if !strings.HasPrefix(content, "# Form W2\n") || strings.Contains(content, "Extraction Trace") {
		t.Errorf("unexpected content:\n%s", content)
	}
	if !strings.Contains(content, "- **wages_tips_compensation:** $75,000.00 (0.95)") {
		t.Errorf("missing wages in:\n%s", content)
	}
	if display := RenderTaxForm("w2-copy-from-drive.pdf", r); !strings.Contains(display, "# Form W2 - w2-copy-from-drive.pdf") {
		t.Errorf("display rendering lost its title:\n%s", display)
	}
}

func TestRenderSubscriptions(t *testing.T) {
	now := day("2024-04-01")
	charges := []recurring.Charge{
		{Merchant: "netflix", Amount: dec("15.99"), Frequency: recurring.FrequencyMonthly, Status: recurring.StatusActive,
			ChargeCount: 3, LastCharge: now.AddDate(0, 0, -5), EstimatedMonthlyCost: dec("15.99")},
		{Merchant: "gym", Amount: dec("40"), Frequency: recurring.FrequencyMonthly, Status: recurring.StatusZombie,
			ChargeCount: 2, LastCharge: now.AddDate(0, 0, -90), EstimatedMonthlyCost: dec("40")},
	}
	md := RenderSubscriptions(charges)
	for _, want := range []string{
		"**Active:** 1 of 2",
		"**Monthly Cost:** $55.99",
		"- **netflix** - $15.99 monthly (active, 3 charges, last 2024-03-27)",
		"## Recommendations",
		"Cancel 1 zombie subscription(s)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}
