package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-ingest/internal/jobs"
)

// Store is an in-memory JobStore, safe for concurrent use. Data is lost on
// restart. Jobs are copied on the way in and out.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*jobs.IngestDocumentJob
	order []string
	limit int
}

// NewStore creates a store that keeps every job.
func NewStore() *Store {
	return NewStoreWithLimit(0)
}

// NewStoreWithLimit creates a store holding at most limit jobs. When full,
// the oldest finished jobs are evicted first; running work is never dropped.
// A limit of zero or less keeps everything.
func NewStoreWithLimit(limit int) *Store {
	return &Store{
		byID:  make(map[string]*jobs.IngestDocumentJob),
		limit: limit,
	}
}

// SaveJob inserts or replaces a job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IngestDocumentJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[job.JobID]; !ok {
		s.order = append(s.order, job.JobID)
	}
	saved := *job
	s.byID[job.JobID] = &saved
	s.evict()
	return nil
}

// evict drops the oldest terminal jobs above the limit. Callers hold mu.
func (s *Store) evict() {
	if s.limit <= 0 || len(s.order) <= s.limit {
		return
	}
	excess := len(s.order) - s.limit
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.byID[id].Status.Terminal() {
			delete(s.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IngestDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, jobs.ErrJobNotFound)
	}
	found := *job
	return &found, nil
}

// ListJobs returns matching jobs, oldest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestDocumentJob, error) {
	s.mu.RLock()
	result := make([]*jobs.IngestDocumentJob, 0, len(s.order))
	for _, id := range s.order {
		job := s.byID[id]
		if filter.SourceURI != "" && job.SourceURI != filter.SourceURI {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		found := *job
		result = append(result, &found)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.IngestDocumentJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus sets the status and, when non-empty, the error message.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, jobs.ErrJobNotFound)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	s.evict()
	return nil
}

// Counts tallies stored jobs by status.
func (s *Store) Counts() map[jobs.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[jobs.JobStatus]int)
	for _, job := range s.byID {
		counts[job.Status]++
	}
	return counts
}

var _ jobs.JobStore = (*Store)(nil)
