package recurring

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func charge(desc, amount string, offsetDays int) domain.BankTransaction {
	return domain.BankTransaction{
		Date:        day0.AddDate(0, 0, offsetDays),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Kind:        domain.KindPurchase,
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"NETFLIX.COM*123456", "netflix"},
		{"SPOTIFY AB*789", "spotify"},
		{"AMZN PRIME*456", "amazon prime"},
		{"SQ *DOORDASH", "doordash"},
		{"PAYPAL *HULU", "hulu"},
		{"MICROSOFT*XBOX", "xbox game pass"},
		{"Corner Cafe 1234", "corner cafe"},
		{"", "unknown"},
		{"#### 123", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeMerchant(tt.in); got != tt.want {
				t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGroupKey(t *testing.T) {
	if got := GroupKey("NETFLIX.COM*1", decimal.RequireFromString("-15.99")); got != "netflix_16" {
		t.Errorf("GroupKey = %q", got)
	}
}

func TestDetect_Monthly(t *testing.T) {
	txns := []domain.BankTransaction{
		charge("NETFLIX.COM*111", "-15.99", 0),
		charge("NETFLIX.COM*222", "-15.99", 30),
		charge("NETFLIX.COM*333", "-15.99", 61),
		charge("PAYROLL", "2000.00", 15),
		charge("CORNER CAFE", "-4.50", 3),
	}
	charges := Detect(txns, Options{Now: day0.AddDate(0, 0, 66)})
	if len(charges) != 1 {
		t.Fatalf("expected one recurring charge, got %+v", charges)
	}
	c := charges[0]
	if c.Merchant != "netflix" || c.Frequency != FrequencyMonthly || c.Status != StatusActive {
		t.Errorf("charge = %+v", c)
	}
	if !c.EstimatedMonthlyCost.Equal(decimal.RequireFromString("15.99")) {
		t.Errorf("monthly cost = %s", c.EstimatedMonthlyCost)
	}
	if c.ChargeCount != 3 || !c.TotalSpent.Equal(decimal.RequireFromString("47.97")) {
		t.Errorf("count = %d, total = %s", c.ChargeCount, c.TotalSpent)
	}
	if c.AverageIntervalDays != 30.5 || c.DaysSinceLastCharge != 5 || c.Group != GroupStreaming {
		t.Errorf("interval = %v, since = %d, group = %q", c.AverageIntervalDays, c.DaysSinceLastCharge, c.Group)
	}
}

func TestDetect_Status(t *testing.T) {
	tests := []struct {
		name      string
		sinceLast int
		want      Status
	}{
		{"active", 20, StatusActive},
		{"inactive", 50, StatusInactive},
		{"zombie", 70, StatusZombie},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns := []domain.BankTransaction{
				charge("GYM", "-30.00", 0), charge("GYM", "-30.00", 30), charge("GYM", "-30.00", 60),
			}
			charges := Detect(txns, Options{Now: day0.AddDate(0, 0, 60+tt.sinceLast)})
			if len(charges) != 1 || charges[0].Status != tt.want {
				t.Errorf("charges = %+v, want status %s", charges, tt.want)
			}
		})
	}
}

func TestDetect_Bands(t *testing.T) {
	tests := []struct {
		gap     int
		freq    string
		monthly string
	}{
		{7, FrequencyWeekly, "120"},
		{91, FrequencyQuarterly, "10"},
		{365, FrequencyYearly, "2.5"},
		{14, "every 14 days", "64.29"},
	}
	for _, tt := range tests {
		t.Run(tt.freq, func(t *testing.T) {
			txns := []domain.BankTransaction{charge("SVC", "-30.00", 0), charge("SVC", "-30.00", tt.gap)}
			charges := Detect(txns, Options{Now: day0.AddDate(0, 0, tt.gap+1)})
			if len(charges) != 1 {
				t.Fatalf("charges = %+v", charges)
			}
			if charges[0].Frequency != tt.freq || !charges[0].EstimatedMonthlyCost.Equal(decimal.RequireFromString(tt.monthly)) {
				t.Errorf("frequency = %q, monthly = %s", charges[0].Frequency, charges[0].EstimatedMonthlyCost)
			}
		})
	}
}

func TestDetect_SkipsSameDayDuplicatesAndLookback(t *testing.T) {
	same := []domain.BankTransaction{charge("SHOP", "-9.99", 5), charge("SHOP", "-9.99", 5)}
	if got := Detect(same, Options{Now: day0.AddDate(0, 0, 10)}); len(got) != 0 {
		t.Errorf("same-day repeats must be ignored, got %+v", got)
	}

	old := []domain.BankTransaction{charge("SVC", "-10.00", 0), charge("SVC", "-10.00", 30), charge("SVC", "-10.00", 200)}
	got := Detect(old, Options{Now: day0.AddDate(0, 0, 210), LookbackDays: 90})
	if len(got) != 0 {
		t.Errorf("lookback should leave a single charge, got %+v", got)
	}
}

func TestSummarizeAndRecommendations(t *testing.T) {
	charges := []Charge{
		{Merchant: "netflix", Group: GroupStreaming, Status: StatusActive, EstimatedMonthlyCost: decimal.RequireFromString("15.99")},
		{Merchant: "hulu", Group: GroupStreaming, Status: StatusActive, EstimatedMonthlyCost: decimal.RequireFromString("7.99")},
		{Merchant: "equinox", Group: GroupFitness, Status: StatusActive, EstimatedMonthlyCost: decimal.RequireFromString("200.00")},
		{Merchant: "peloton", Group: GroupFitness, Status: StatusZombie, EstimatedMonthlyCost: decimal.RequireFromString("44.00")},
	}

	s := Summarize(charges)
	if s.ActiveCount != 3 || s.ZombieCount != 1 || !s.TotalMonthlyCost.Equal(decimal.RequireFromString("267.98")) {
		t.Errorf("summary = %+v", s)
	}
	if !s.TotalAnnualCost.Equal(decimal.RequireFromString("3215.76")) {
		t.Errorf("annual = %s", s.TotalAnnualCost)
	}
	if !strings.Contains(s.String(), "$267.98") {
		t.Errorf("summary text = %q", s.String())
	}

	recs := Recommendations(charges)
	if len(recs) != 4 {
		t.Fatalf("recommendations = %q", recs)
	}
	wants := []string{
		"Cancel 1 zombie subscription(s) to save $44.00/month: peloton",
		"You have 2 streaming services (netflix, hulu) costing $23.98/month",
		"equinox costs $200.00/month",
		"Total annual subscription cost: $3,215.76",
	}
	for i, w := range wants {
		if !strings.Contains(recs[i], w) {
			t.Errorf("recs[%d] = %q, want it to contain %q", i, recs[i], w)
		}
	}

	if Recommendations(nil) != nil {
		t.Error("no charges, no recommendations")
	}
}
