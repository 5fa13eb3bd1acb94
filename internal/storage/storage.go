// Package storage keeps import job records in process and, when AWS is
// configured, archives raw CSV files to S3 and mirrors jobs to DynamoDB.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

// Storage is the job ledger used when no database is configured.
type Storage struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ImportJob

	// AWS storage (optional)
	aws *AWSStorage
	now func() time.Time
}

// New creates a Storage. aws may be nil.
func New(aws *AWSStorage) *Storage {
	return &Storage{
		jobs: make(map[string]*domain.ImportJob),
		aws:  aws,
		now:  time.Now,
	}
}

func (s *Storage) mirror() bool { return s.aws != nil && s.aws.HasJobTable() }

// Start records a new job.
func (s *Storage) Start(ctx context.Context, job *domain.ImportJob) error {
	cp := *job
	s.mu.Lock()
	s.jobs[job.ID] = &cp
	s.mu.Unlock()

	if s.mirror() {
		return s.aws.Start(ctx, job)
	}
	return nil
}

// UpdateProgress records the counters of a running job.
func (s *Storage) UpdateProgress(ctx context.Context, jobID string, p domain.UploadProgress) error {
	s.mu.Lock()
	if j, ok := s.jobs[jobID]; ok {
		applyProgress(j, p)
	}
	s.mu.Unlock()

	if s.mirror() {
		return s.aws.UpdateProgress(ctx, jobID, p)
	}
	return nil
}

// Finish records the final state of a job.
func (s *Storage) Finish(ctx context.Context, jobID string, p domain.UploadProgress, errMsg string) error {
	finished := s.now()
	s.mu.Lock()
	if j, ok := s.jobs[jobID]; ok {
		applyProgress(j, p)
		j.Error = errMsg
		j.FinishedAt = &finished
	}
	s.mu.Unlock()

	if s.mirror() {
		return s.aws.Finish(ctx, jobID, p, errMsg)
	}
	return nil
}

func applyProgress(j *domain.ImportJob, p domain.UploadProgress) {
	j.State = p.State
	j.ProcessedRecords = p.Processed
	j.FailedBatches = p.FailedBatches
	j.Percent = p.Percent
}

// GetJob returns a job, falling back to DynamoDB for jobs started by
// another replica.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if ok {
		cp := *j
		return &cp, nil
	}
	if s.mirror() {
		return s.aws.GetJob(ctx, jobID)
	}
	return nil, ErrJobNotFound
}

// ListJobs returns the jobs of this process, newest first.
func (s *Storage) ListJobs(_ context.Context, limit int) ([]domain.ImportJob, error) {
	s.mu.RLock()
	out := make([]domain.ImportJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ArchiveCSV archives the raw CSV of a session when S3 is configured. It
// returns an empty key when archiving is disabled.
func (s *Storage) ArchiveCSV(ctx context.Context, sessionID, fileName, text string) (string, error) {
	if s.aws == nil || s.aws.s3Client == nil {
		return "", nil
	}
	key, err := s.aws.ArchiveCSV(ctx, sessionID, fileName, text)
	if err != nil {
		logger.Error("csv archive failed", "session_id", sessionID, "file_name", fileName, "error", err.Error())
		return "", err
	}
	logger.Info("csv archived", "session_id", sessionID, "key", key)
	return key, nil
}
