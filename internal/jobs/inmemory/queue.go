package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

const defaultMaxRetries = 3

var (
	meter        = otel.Meter("finance-ingest/jobs")
	jobsFinished metric.Int64Counter
)

func init() {
	jobsFinished, _ = meter.Int64Counter("jobs.finished",
		metric.WithDescription("Ingest jobs that reached a terminal status"))
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs are lost on restart.
type Queue struct {
	jobChan   chan *jobs.IngestDocumentJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	// Backoff returns the delay before retry n (1-based). Linear seconds
	// by default.
	Backoff func(retry int) time.Duration
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before
// PublishIngestDocument blocks; workers is the number of concurrent handlers.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.IngestDocumentJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		Backoff:   func(retry int) time.Duration { return time.Duration(retry) * time.Second },
	}
}

// PublishIngestDocument enqueues an ingest job for asynchronous processing.
func (q *Queue) PublishIngestDocument(ctx context.Context, job *jobs.IngestDocumentJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start starts the worker goroutines. The handler is called concurrently,
// up to the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestDocumentJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source_uri", job.SourceURI).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		if job.Status == jobs.JobStatusRunning {
			job.Status = jobs.JobStatusCompleted
		}
		job.Error = ""
	case !jobs.Permanent(err) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		backoff := q.Backoff(job.RetryCount)
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("job failed, retrying")

		retryJob := *job
		time.AfterFunc(backoff, func() {
			retryJob.Status = jobs.JobStatusPending
			retryJob.StartedAt = nil
			retryJob.CompletedAt = nil
			if err := q.PublishIngestDocument(ctx, &retryJob); err != nil {
				log.Error().Err(err).Msg("re-enqueue failed")
			}
		})
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("job failed")
	}

	if job.Status != jobs.JobStatusRetrying {
		jobsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(job.Status))))
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
