package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestDocument ingests one source document end to end.
	JobTypeIngestDocument JobType = "ingest_document"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusDuplicate indicates the document was already ingested unchanged.
	JobStatusDuplicate JobStatus = "duplicate"
)

// Terminal reports whether no further processing will happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusDuplicate
}

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// IngestDocumentJob represents a request to ingest one document.
type IngestDocumentJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SourceURI is a gs:// URI or a local path.
	SourceURI string `json:"source_uri"`

	// Title overrides the document title derived from the filename.
	Title string `json:"title,omitempty"`

	// Scope partitions identity, e.g. one tenant or household.
	Scope string `json:"scope,omitempty"`

	// FormType forces tax-form extraction, e.g. "W2".
	FormType string `json:"form_type,omitempty"`

	// ParsingRunID is the ledger row of the latest attempt.
	ParsingRunID string `json:"parsing_run_id,omitempty"`

	// ArtifactID is set once identity resolution succeeds.
	ArtifactID string `json:"artifact_id,omitempty"`

	// Outcome is the identity outcome (created, updated, unchanged, renamed).
	Outcome string `json:"outcome,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// FailedStage names the pipeline stage that failed.
	FailedStage string `json:"failed_stage,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

func (j *IngestDocumentJob) GetID() string {
	return j.JobID
}

func (j *IngestDocumentJob) GetType() JobType {
	return JobTypeIngestDocument
}

func (j *IngestDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngestDocument publishes a document ingest job.
	PublishIngestDocument(ctx context.Context, job *IngestDocumentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed. Errors for which
// Permanent reports true are not retried.
type JobHandler func(ctx context.Context, job Job) error

// PermanentError marks a failure that retrying cannot fix, such as an
// unsupported file format.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent reports whether err is, or wraps, a *PermanentError.
func Permanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// JobStore defines the interface for storing and retrieving job status.
// This allows tracking job execution across service restarts.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestDocumentJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestDocumentJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestDocumentJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SourceURI filters jobs by source URI.
	SourceURI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
