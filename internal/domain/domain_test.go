package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		desc   string
		amount string
		want   TransactionKind
	}{
		{"QUARTERLY DIVIDEND VTI", "12.00", KindDividend},
		{"MONTHLY SERVICE FEE", "-5.00", KindFee},
		{"INTEREST PAYMENT", "0.42", KindInterest},
		{"ATM WITHDRAWAL 123 MAIN", "-60.00", KindWithdrawal},
		{"MOBILE DEPOSIT", "200.00", KindDeposit},
		{"ONLINE XFER TO SAVINGS", "-100.00", KindTransfer},
		{"AUTOPAY THANK YOU", "300.00", KindPayment},
		{"COFFEE SHOP", "-4.50", KindDebit},
		{"STARBUCKS COFFEE #123", "-6.25", KindDebit},
		{"OVERDRAFT FEES", "-35.00", KindFee},
		{"CASHMERE OUTLET", "-80.00", KindDebit},
		{"PAYMENTS RECEIVED", "50.00", KindPayment},
		{"REFUND", "4.50", KindCredit},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := ClassifyByKeywords(tt.desc, dec(tt.amount)); got != tt.want {
				t.Errorf("ClassifyByKeywords(%q) = %s, want %s", tt.desc, got, tt.want)
			}
		})
	}
}

func TestReconcile_CostBasisFromGainLoss(t *testing.T) {
	gl := dec("200")
	h := InvestmentHolding{Symbol: "VTI", MarketValue: dec("1000"), GainLoss: &gl}
	h.Reconcile()

	if h.CostBasis == nil || !h.CostBasis.Equal(dec("800")) {
		t.Fatalf("CostBasis = %v, want 800", h.CostBasis)
	}
	if h.GainLossPercent == nil || !h.GainLossPercent.Equal(dec("25")) {
		t.Errorf("GainLossPercent = %v, want 25", h.GainLossPercent)
	}
}

func TestReconcile_MarketValueFromQuantity(t *testing.T) {
	h := InvestmentHolding{Quantity: dec("10"), Price: dec("12.345")}
	h.Reconcile()
	if !h.MarketValue.Equal(dec("123.45")) {
		t.Errorf("MarketValue = %s, want 123.45", h.MarketValue)
	}
	if h.CostBasis != nil || h.GainLoss != nil {
		t.Error("expected no derived cost basis or gain/loss")
	}
}

func TestAccountTypeFromName(t *testing.T) {
	tests := map[string]AccountType{
		"ROTH IRA":         AccountRothIRA,
		"Traditional IRA":  AccountTraditionalIRA,
		"ACME 401(k)":      Account401k,
		"Individual - TOD": AccountBrokerage,
		"rollover ira":     AccountTraditionalIRA,
	}
	for name, want := range tests {
		if got := AccountTypeFromName(name); got != want {
			t.Errorf("AccountTypeFromName(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestFromOutflowPositive(t *testing.T) {
	if got := FromOutflowPositive(dec("15.99")); !got.Equal(dec("-15.99")) {
		t.Errorf("FromOutflowPositive(15.99) = %s", got)
	}
}

func TestErrors(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := fmt.Errorf("convert: %w", &TransientError{Op: "convert", Err: base})
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected TransientError to unwrap to its cause")
	}
	if IsTransient(ErrUnsupportedFormat) {
		t.Error("ErrUnsupportedFormat must not be transient")
	}

	rowErr := &MalformedRowError{Row: 4, Err: base}
	if rowErr.Error() != "row 4: connection reset" {
		t.Errorf("MalformedRowError.Error() = %q", rowErr.Error())
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in, plain, signed string
	}{
		{"1234.56", "$1,234.56", "+$1,234.56"},
		{"-15.99", "$15.99", "-$15.99"},
		{"0", "$0.00", "+$0.00"},
		{"2.005", "$2.01", "+$2.01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			if got := FormatUSD(d); got != tt.plain {
				t.Errorf("FormatUSD(%s) = %q, want %q", tt.in, got, tt.plain)
			}
			if got := SignedUSD(d); got != tt.signed {
				t.Errorf("SignedUSD(%s) = %q, want %q", tt.in, got, tt.signed)
			}
		})
	}
}
