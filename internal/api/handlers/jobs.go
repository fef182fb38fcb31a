package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

// JobsHandler handles ingest job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// Register installs the job routes on mux.
func (h *JobsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/jobs", h.EnqueueIngest)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
}

type enqueueRequest struct {
	SourceURI string `json:"source_uri"`
	Title     string `json:"title"`
	Scope     string `json:"scope"`
	FormType  string `json:"form_type"`
}

// EnqueueIngest handles POST /api/jobs
func (h *JobsHandler) EnqueueIngest(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.SourceURI = strings.TrimSpace(req.SourceURI)
	if req.SourceURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri is required")
		return
	}
	if !strings.HasPrefix(req.SourceURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri must be a gs:// URI")
		return
	}
	if req.FormType != "" && taxform.ParseFormType(req.FormType) == taxform.FormUnknown {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown form_type")
		return
	}

	job := &jobs.IngestDocumentJob{
		SourceURI: req.SourceURI,
		Title:     req.Title,
		Scope:     req.Scope,
		FormType:  req.FormType,
	}
	if err := h.publisher.PublishIngestDocument(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("source_uri", req.SourceURI).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue ingest job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_uri", job.SourceURI).Msg("Ingest job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_uri": job.SourceURI,
		"status":     string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceURI: query.Get("source_uri"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.IngestDocumentJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
