package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/jobs/inmemory"
)

// MockPublisher records published jobs.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.IngestDocumentJob) error
	Published   []*jobs.IngestDocumentJob
}

func (m *MockPublisher) PublishIngestDocument(ctx context.Context, job *jobs.IngestDocumentJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	job.Status = jobs.JobStatusPending
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockQuerier returns canned transaction rows.
type MockQuerier struct {
	QueryFunc func(ctx context.Context, start, end time.Time) ([]*infra.TransactionRow, error)
}

func (m *MockQuerier) QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]*infra.TransactionRow, error) {
	return m.QueryFunc(ctx, start, end)
}

func newMux(pub jobs.Publisher, store jobs.JobStore, q TransactionQuerier, now time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	NewJobsHandler(pub, store, zerolog.Nop()).Register(mux)
	subs := NewSubscriptionsHandler(q, zerolog.Nop())
	subs.now = func() time.Time { return now }
	subs.Register(mux)
	return mux
}

func TestEnqueueIngest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		publishErr error
		wantStatus int
		wantJobs   int
	}{
		{name: "accepted", body: `{"source_uri":"gs://bucket/w2.pdf","form_type":"W2","scope":"home"}`, wantStatus: http.StatusAccepted, wantJobs: 1},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing uri", body: `{"title":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "local path", body: `{"source_uri":"/tmp/a.csv"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown form", body: `{"source_uri":"gs://b/a.pdf","form_type":"W9"}`, wantStatus: http.StatusBadRequest},
		{name: "queue closed", body: `{"source_uri":"gs://b/a.csv"}`, publishErr: errors.New("queue is closed"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &MockPublisher{}
			if tt.publishErr != nil {
				pub.PublishFunc = func(context.Context, *jobs.IngestDocumentJob) error { return tt.publishErr }
			}
			mux := newMux(pub, inmemory.NewStore(), nil, time.Now())

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(pub.Published) != tt.wantJobs {
				t.Fatalf("published %d jobs, want %d", len(pub.Published), tt.wantJobs)
			}
			if tt.wantJobs == 1 {
				job := pub.Published[0]
				if job.FormType != "W2" || job.Scope != "home" {
					t.Errorf("job = %+v", job)
				}
				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp["job_id"] != "job-1" || resp["status"] != "pending" {
					t.Errorf("response = %v", resp)
				}
			}
		})
	}
}

func TestGetAndListJobs(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for _, job := range []*jobs.IngestDocumentJob{
		{JobID: "a", SourceURI: "gs://b/one.csv", Status: jobs.JobStatusCompleted},
		{JobID: "b", SourceURI: "gs://b/two.csv", Status: jobs.JobStatusFailed, FailedStage: "parse"},
	} {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}
	mux := newMux(&MockPublisher{}, store, nil, time.Now())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/b", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GetJob status = %d", rec.Code)
	}
	var job jobs.IngestDocumentJob
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.FailedStage != "parse" {
		t.Errorf("failed_stage = %q", job.FailedStage)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
	var list struct {
		Jobs  []jobs.IngestDocumentJob `json:"jobs"`
		Count int                      `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Jobs[0].JobID != "a" {
		t.Errorf("list = %+v", list)
	}
}

func TestListSubscriptions(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	var txns []domain.BankTransaction
	for _, month := range []time.Month{1, 2, 3} {
		txns = append(txns, domain.BankTransaction{
			Date:        time.Date(2024, month, 15, 0, 0, 0, 0, time.UTC),
			Description: "NETFLIX.COM",
			Amount:      decimal.RequireFromString("-15.99"),
		})
	}
	txns = append(txns, domain.BankTransaction{
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "PAYROLL",
		Amount:      decimal.NewFromInt(3000),
	})
	rows := infra.NewTransactionRows("doc", "run", txns, now)

	var gotStart, gotEnd time.Time
	q := &MockQuerier{QueryFunc: func(_ context.Context, start, end time.Time) ([]*infra.TransactionRow, error) {
		gotStart, gotEnd = start, end
		return rows, nil
	}}
	mux := newMux(&MockPublisher{}, inmemory.NewStore(), q, now)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions?start_date=2024-01-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if gotStart.Format(dateLayout) != "2024-01-01" || !gotEnd.Equal(now) {
		t.Errorf("query range = %s..%s", gotStart, gotEnd)
	}

	var resp struct {
		Subscriptions []struct {
			ChargeCount int    `json:"charge_count"`
			Status      string `json:"status"`
			Frequency   string `json:"frequency"`
			Amount      string `json:"amount"`
		} `json:"subscriptions"`
		Summary struct {
			ActiveCount int `json:"active_count"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Subscriptions) != 1 {
		t.Fatalf("subscriptions = %+v", resp.Subscriptions)
	}
	sub := resp.Subscriptions[0]
	if sub.ChargeCount != 3 || sub.Status != "active" || sub.Frequency != "monthly" || sub.Amount != "15.99" {
		t.Errorf("subscription = %+v", sub)
	}
	if resp.Summary.ActiveCount != 1 {
		t.Errorf("active_count = %d", resp.Summary.ActiveCount)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions?format=markdown", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
}

func TestListSubscriptions_BadRequest(t *testing.T) {
	q := &MockQuerier{QueryFunc: func(context.Context, time.Time, time.Time) ([]*infra.TransactionRow, error) {
		t.Fatal("query must not run")
		return nil, nil
	}}
	mux := newMux(&MockPublisher{}, inmemory.NewStore(), q, time.Now())

	for _, target := range []string{
		"/api/subscriptions?start_date=01-01-2024",
		"/api/subscriptions?end_date=bad",
		"/api/subscriptions?start_date=2024-02-01&end_date=2024-01-01",
		"/api/subscriptions?min_occurrences=0",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
