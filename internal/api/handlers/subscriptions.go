package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/domain"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/recurring"
	"github.com/dvloznov/finance-ingest/internal/render"
)

const dateLayout = "2006-01-02"

// TransactionQuerier reads exported transactions.
type TransactionQuerier interface {
	QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*infra.TransactionRow, error)
}

// SubscriptionsHandler reports recurring charges found in exported
// transactions.
type SubscriptionsHandler struct {
	repo TransactionQuerier
	log  zerolog.Logger
	now  func() time.Time
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(repo TransactionQuerier, log zerolog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Register installs the subscription routes on mux.
func (h *SubscriptionsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/subscriptions", h.ListSubscriptions)
}

type chargeView struct {
	Merchant             string          `json:"merchant"`
	Group                string          `json:"group,omitempty"`
	Category             string          `json:"category,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Frequency            string          `json:"frequency"`
	ChargeCount          int             `json:"charge_count"`
	TotalSpent           decimal.Decimal `json:"total_spent"`
	FirstCharge          string          `json:"first_charge"`
	LastCharge           string          `json:"last_charge"`
	DaysSinceLastCharge  int             `json:"days_since_last_charge"`
	EstimatedMonthlyCost decimal.Decimal `json:"estimated_monthly_cost"`
	Status               string          `json:"status"`
}

type summaryView struct {
	Count            int             `json:"count"`
	ActiveCount      int             `json:"active_count"`
	ZombieCount      int             `json:"zombie_count"`
	TotalMonthlyCost decimal.Decimal `json:"total_monthly_cost"`
	TotalAnnualCost  decimal.Decimal `json:"total_annual_cost"`
}

// ListSubscriptions handles GET /api/subscriptions
// Query params: start_date, end_date (YYYY-MM-DD), min_occurrences,
// format=markdown
func (h *SubscriptionsHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	now := h.now()

	// Default to the last year
	endDate := now
	startDate := endDate.AddDate(-1, 0, 0)

	if startStr := query.Get("start_date"); startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format. Use YYYY-MM-DD")
			return
		}
		startDate = parsed
	}

	if endStr := query.Get("end_date"); endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format. Use YYYY-MM-DD")
			return
		}
		endDate = parsed
	}

	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	opts := recurring.Options{Now: now}
	if minStr := query.Get("min_occurrences"); minStr != "" {
		n, err := strconv.Atoi(minStr)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "min_occurrences must be a positive integer")
			return
		}
		opts.MinOccurrences = n
	}

	rows, err := h.repo.QueryTransactionsByDateRange(r.Context(), startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	txns := make([]domain.BankTransaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.ToDomain())
	}
	charges := recurring.Detect(txns, opts)

	if query.Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(render.RenderSubscriptions(charges)))
		return
	}

	views := make([]chargeView, 0, len(charges))
	for _, c := range charges {
		views = append(views, chargeView{
			Merchant:             c.Merchant,
			Group:                string(c.Group),
			Category:             c.Category,
			Amount:               c.Amount,
			Frequency:            c.Frequency,
			ChargeCount:          c.ChargeCount,
			TotalSpent:           c.TotalSpent,
			FirstCharge:          c.FirstCharge.Format(dateLayout),
			LastCharge:           c.LastCharge.Format(dateLayout),
			DaysSinceLastCharge:  c.DaysSinceLastCharge,
			EstimatedMonthlyCost: c.EstimatedMonthlyCost,
			Status:               string(c.Status),
		})
	}
	summary := recurring.Summarize(charges)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": views,
		"summary": summaryView{
			Count:            summary.Count,
			ActiveCount:      summary.ActiveCount,
			ZombieCount:      summary.ZombieCount,
			TotalMonthlyCost: summary.TotalMonthlyCost,
			TotalAnnualCost:  summary.TotalAnnualCost,
		},
		"recommendations": recurring.Recommendations(charges),
		"start_date":      startDate.Format(dateLayout),
		"end_date":        endDate.Format(dateLayout),
	})
}
