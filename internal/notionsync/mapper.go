package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-ingest/internal/recurring"
)

// Property names of the subscriptions database.
const (
	PropMerchant    = "Merchant"
	PropChargeKey   = "Charge Key"
	PropAmount      = "Amount"
	PropMonthlyCost = "Monthly Cost"
	PropFrequency   = "Frequency"
	PropStatus      = "Status"
	PropGroup       = "Group"
	PropCategory    = "Category"
	PropChargeCount = "Charge Count"
	PropTotalSpent  = "Total Spent"
	PropFirstCharge = "First Charge"
	PropLastCharge  = "Last Charge"
)

// ChargeKey identifies a recurring charge across syncs.
func ChargeKey(c recurring.Charge) string {
	return recurring.GroupKey(c.Merchant, c.Amount)
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// ChargeToNotionProperties converts a detected charge to page properties.
func ChargeToNotionProperties(c recurring.Charge) notionapi.Properties {
	amount, _ := c.Amount.Float64()
	monthly, _ := c.EstimatedMonthlyCost.Float64()
	total, _ := c.TotalSpent.Float64()

	props := notionapi.Properties{
		PropMerchant:    notionapi.TitleProperty{Title: richText(c.Merchant)},
		PropChargeKey:   notionapi.RichTextProperty{RichText: richText(ChargeKey(c))},
		PropAmount:      notionapi.NumberProperty{Number: amount},
		PropMonthlyCost: notionapi.NumberProperty{Number: monthly},
		PropTotalSpent:  notionapi.NumberProperty{Number: total},
		PropChargeCount: notionapi.NumberProperty{Number: float64(c.ChargeCount)},
		PropFrequency:   notionapi.SelectProperty{Select: notionapi.Option{Name: c.Frequency}},
		PropStatus:      notionapi.SelectProperty{Select: notionapi.Option{Name: string(c.Status)}},
	}
	if c.Group != "" {
		props[PropGroup] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(c.Group)}}
	}
	if c.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: c.Category}}
	}
	if !c.FirstCharge.IsZero() {
		props[PropFirstCharge] = dateProperty(c.FirstCharge)
	}
	if !c.LastCharge.IsZero() {
		props[PropLastCharge] = dateProperty(c.LastCharge)
	}
	return props
}

// extractChargeKey reads the Charge Key of an existing page. Returns empty
// string if not found.
func extractChargeKey(page notionapi.Page) string {
	prop, ok := page.Properties[PropChargeKey]
	if !ok {
		return ""
	}
	switch rt := prop.(type) {
	case *notionapi.RichTextProperty:
		if len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	case notionapi.RichTextProperty:
		if len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
