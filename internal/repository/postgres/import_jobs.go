package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/crm-import/internal/domain"
)

// ErrJobNotFound is returned when no import job has the given id.
var ErrJobNotFound = errors.New("import job not found")

// ImportJobRepo is the import job ledger in PostgreSQL. It satisfies
// ingest.Ledger.
type ImportJobRepo struct{ db *sql.DB }

// NewImportJobRepo creates a Postgres-backed import job ledger.
func NewImportJobRepo(db *sql.DB) *ImportJobRepo { return &ImportJobRepo{db: db} }

func (r *ImportJobRepo) Start(ctx context.Context, job *domain.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, session_id, file_name, object_name, operation, state,
			total_records, processed_records, failed_batches, percent, archive_key, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $9)
	`, job.ID, job.SessionID, job.FileName, job.ObjectName, string(job.Operation), string(job.State),
		job.TotalRecords, job.ArchiveKey, job.StartedAt)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

func (r *ImportJobRepo) UpdateProgress(ctx context.Context, jobID string, p domain.UploadProgress) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET state = $2, processed_records = $3, failed_batches = $4, percent = $5, updated_at = NOW()
		WHERE id = $1
	`, jobID, string(p.State), p.Processed, p.FailedBatches, p.Percent)
	if err != nil {
		return fmt.Errorf("update import job progress: %w", err)
	}
	return requireRow(res)
}

func (r *ImportJobRepo) Finish(ctx context.Context, jobID string, p domain.UploadProgress, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET state = $2, processed_records = $3, failed_batches = $4, percent = $5,
			error = NULLIF($6, ''), finished_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, jobID, string(p.State), p.Processed, p.FailedBatches, p.Percent, errMsg)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	return requireRow(res)
}

const jobColumns = `id, session_id, file_name, object_name, operation, state, total_records,
	processed_records, failed_batches, percent, COALESCE(archive_key, ''), COALESCE(error, ''),
	started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*domain.ImportJob, error) {
	var j domain.ImportJob
	var finished sql.NullTime
	err := s.Scan(&j.ID, &j.SessionID, &j.FileName, &j.ObjectName, &j.Operation, &j.State,
		&j.TotalRecords, &j.ProcessedRecords, &j.FailedBatches, &j.Percent, &j.ArchiveKey, &j.Error,
		&j.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	return &j, nil
}

func (r *ImportJobRepo) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return j, nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *ImportJobRepo) ListJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM import_jobs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
