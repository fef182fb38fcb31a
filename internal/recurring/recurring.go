// Package recurring finds subscriptions and other repeating charges in a
// transaction history.
package recurring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusZombie   Status = "zombie"
)

const (
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Charge is one detected recurring charge.
type Charge struct {
	Merchant             string
	MerchantRaw          string
	Group                Group
	Category             string
	Amount               decimal.Decimal
	Frequency            string
	ChargeCount          int
	TotalSpent           decimal.Decimal
	FirstCharge          time.Time
	LastCharge           time.Time
	DaysSinceLastCharge  int
	AverageIntervalDays  float64
	EstimatedMonthlyCost decimal.Decimal
	Status               Status
}

// Options tune detection. Zero values use the defaults.
type Options struct {
	// MinOccurrences is the smallest group treated as recurring. Default 2.
	MinOccurrences int
	// LookbackDays limits analysis to recent charges when positive.
	LookbackDays int
	Now          time.Time
}

// Detect groups outflows by merchant and rounded amount and classifies each
// group with enough charges. Results are ordered by total spent, highest
// first.
func Detect(txns []domain.BankTransaction, opts Options) []Charge {
	if opts.MinOccurrences < 2 {
		opts.MinOccurrences = 2
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	var since time.Time
	if opts.LookbackDays > 0 {
		since = opts.Now.AddDate(0, 0, -opts.LookbackDays)
	}

	groups := make(map[string][]domain.BankTransaction)
	var order []string
	for _, t := range txns {
		if !t.IsOutflow() {
			continue
		}
		if !since.IsZero() && t.Date.Before(since) {
			continue
		}
		desc := t.Merchant
		if desc == "" {
			desc = t.Description
		}
		key := GroupKey(desc, t.Amount)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	var charges []Charge
	for _, key := range order {
		g := groups[key]
		if len(g) < opts.MinOccurrences {
			continue
		}
		if c, ok := analyze(g, opts.Now); ok {
			charges = append(charges, c)
		}
	}

	sort.SliceStable(charges, func(i, j int) bool {
		return charges[i].TotalSpent.GreaterThan(charges[j].TotalSpent)
	})
	return charges
}

func analyze(g []domain.BankTransaction, now time.Time) (Charge, bool) {
	sorted := make([]domain.BankTransaction, len(g))
	copy(sorted, g)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	total := 0
	for i := 1; i < len(sorted); i++ {
		total += daysBetween(sorted[i-1].Date, sorted[i].Date)
	}
	avg := float64(total) / float64(len(sorted)-1)
	// Same-day repeats are duplicates, not a cadence.
	if avg <= 0 {
		return Charge{}, false
	}

	first := sorted[0]
	amount := first.Amount.Abs()
	frequency, monthly := band(avg, amount)

	last := sorted[len(sorted)-1]
	since := daysBetween(last.Date, now)

	status := StatusInactive
	if float64(since) < avg*1.5 {
		status = StatusActive
	}
	if float64(since) > avg*2 {
		status = StatusZombie
	}

	spent := decimal.Zero
	for _, t := range sorted {
		spent = spent.Add(t.Amount.Abs())
	}

	raw := first.Merchant
	if raw == "" {
		raw = first.Description
	}
	category := first.Category
	if category == "" {
		category = string(first.Kind)
	}

	return Charge{
		Merchant:             NormalizeMerchant(raw),
		MerchantRaw:          raw,
		Group:                MerchantGroup(raw),
		Category:             category,
		Amount:               amount.Round(2),
		Frequency:            frequency,
		ChargeCount:          len(sorted),
		TotalSpent:           spent.Round(2),
		FirstCharge:          first.Date,
		LastCharge:           last.Date,
		DaysSinceLastCharge:  since,
		AverageIntervalDays:  math.Round(avg*10) / 10,
		EstimatedMonthlyCost: monthly.Round(2),
		Status:               status,
	}, true
}

// band maps an average interval to a frequency label and the monthly cost
// of one charge at that cadence.
func band(avg float64, amount decimal.Decimal) (string, decimal.Decimal) {
	switch {
	case avg >= 25 && avg <= 35:
		return FrequencyMonthly, amount
	case avg >= 85 && avg <= 95:
		return FrequencyQuarterly, amount.Div(decimal.NewFromInt(3))
	case avg >= 355 && avg <= 375:
		return FrequencyYearly, amount.Div(decimal.NewFromInt(12))
	case avg >= 6 && avg <= 8:
		return FrequencyWeekly, amount.Mul(decimal.NewFromInt(4))
	}
	return fmt.Sprintf("every %d days", int(avg)), amount.Mul(decimal.NewFromInt(30)).Div(decimal.NewFromFloat(avg))
}

// daysBetween counts whole days from a to b, flooring partial days.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// Summary totals a detection run.
type Summary struct {
	Count            int
	ActiveCount      int
	ZombieCount      int
	TotalMonthlyCost decimal.Decimal
	TotalAnnualCost  decimal.Decimal
}

func Summarize(charges []Charge) Summary {
	s := Summary{Count: len(charges), TotalMonthlyCost: decimal.Zero}
	for _, c := range charges {
		switch c.Status {
		case StatusActive:
			s.ActiveCount++
		case StatusZombie:
			s.ZombieCount++
		}
		s.TotalMonthlyCost = s.TotalMonthlyCost.Add(c.EstimatedMonthlyCost)
	}
	s.TotalMonthlyCost = s.TotalMonthlyCost.Round(2)
	s.TotalAnnualCost = s.TotalMonthlyCost.Mul(decimal.NewFromInt(12)).Round(2)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("Found %d active subscriptions with estimated monthly cost of %s", s.ActiveCount, domain.FormatUSD(s.TotalMonthlyCost))
}

// Recommendations suggests cancellations and reviews: zombie charges,
// overlapping streaming services, charges above $50 a month and the
// annual total.
func Recommendations(charges []Charge) []string {
	var recs []string

	var zombies []Charge
	for _, c := range charges {
		if c.Status == StatusZombie {
			zombies = append(zombies, c)
		}
	}
	if len(zombies) > 0 {
		waste := decimal.Zero
		var names []string
		for i, z := range zombies {
			waste = waste.Add(z.EstimatedMonthlyCost)
			if i < 3 {
				names = append(names, z.Merchant)
			}
		}
		recs = append(recs, fmt.Sprintf("Cancel %d zombie subscription(s) to save %s/month: %s",
			len(zombies), domain.FormatUSD(waste), strings.Join(names, ", ")))
	}

	var streaming []Charge
	for _, c := range charges {
		if c.Status == StatusActive && (c.Group == GroupStreaming || strings.Contains(strings.ToLower(c.Category), "streaming")) {
			streaming = append(streaming, c)
		}
	}
	if len(streaming) > 1 {
		total := decimal.Zero
		var names []string
		for _, c := range streaming {
			total = total.Add(c.EstimatedMonthlyCost)
			names = append(names, c.Merchant)
		}
		recs = append(recs, fmt.Sprintf("You have %d streaming services (%s) costing %s/month - consider consolidating",
			len(streaming), strings.Join(names, ", "), domain.FormatUSD(total)))
	}

	fifty := decimal.NewFromInt(50)
	shown := 0
	for _, c := range charges {
		if shown == 2 {
			break
		}
		if c.EstimatedMonthlyCost.GreaterThan(fifty) {
			recs = append(recs, fmt.Sprintf("%s costs %s/month - verify you're getting value", c.Merchant, domain.FormatUSD(c.EstimatedMonthlyCost)))
			shown++
		}
	}

	if len(charges) > 0 {
		recs = append(recs, fmt.Sprintf("Total annual subscription cost: %s - review quarterly to avoid waste", domain.FormatUSD(Summarize(charges).TotalAnnualCost)))
	}
	return recs
}
