package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/crm-import/internal/csvfile"
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

// DefaultChunkSize is the number of rows per batch.
const DefaultChunkSize = 200

// Sink is the platform side of an upload.
type Sink interface {
	SubmitBatch(ctx context.Context, fileName string, records []string) error
	ReportJobStatus(ctx context.Context, report domain.JobStatusReport) error
}

// Ledger records upload jobs. Ledger failures are logged and never fail an
// upload.
type Ledger interface {
	Start(ctx context.Context, job *domain.ImportJob) error
	UpdateProgress(ctx context.Context, jobID string, p domain.UploadProgress) error
	Finish(ctx context.Context, jobID string, p domain.UploadProgress, errMsg string) error
}

// Observer is told about every progress change.
type Observer func(ctx context.Context, p domain.UploadProgress)

// Job is one upload.
type Job struct {
	ID         string
	SessionID  string
	FileName   string
	ObjectName string
	Operation  domain.Operation
	ArchiveKey string
	Rows       []csvfile.Record

	// Columns limits each row to the mapped columns. Nil sends every column.
	Columns []string
}

// Driver runs uploads.
type Driver struct {
	sink      Sink
	chunkSize int
	ledger    Ledger
	observe   Observer
	now       func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithChunkSize overrides DefaultChunkSize. Non-positive sizes are ignored.
func WithChunkSize(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithLedger records every run in l.
func WithLedger(l Ledger) Option {
	return func(d *Driver) { d.ledger = l }
}

// WithObserver reports progress to fn.
func WithObserver(fn Observer) Option {
	return func(d *Driver) { d.observe = fn }
}

// NewDriver returns a driver submitting to sink.
func NewDriver(sink Sink, opts ...Option) *Driver {
	d := &Driver{sink: sink, chunkSize: DefaultChunkSize, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ChunkSize returns the configured batch size.
func (d *Driver) ChunkSize() int { return d.chunkSize }

// Run uploads job and returns its final progress. The progress state is
// UploadCompleted only when every batch and the final status report
// succeeded; otherwise it is UploadFailed and the error says why.
func (d *Driver) Run(ctx context.Context, job Job) (domain.UploadProgress, error) {
	if d.sink == nil {
		return domain.UploadProgress{State: domain.UploadFailed}, ErrNoSink
	}

	total := len(job.Rows)
	p := domain.UploadProgress{
		State:   domain.UploadUploading,
		Total:   total,
		Batches: batchCount(total, d.chunkSize),
	}
	d.startLedger(ctx, job, p)
	d.emit(ctx, job, &p)

	logger.Info("upload started",
		"job_id", job.ID, "file", job.FileName, "object", job.ObjectName,
		"operation", job.Operation, "rows", total, "batches", p.Batches)

	var runErr error
	for start := 0; start < total; start += d.chunkSize {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("upload interrupted after %d of %d rows: %w", p.Processed, total, err)
			break
		}
		end := start + d.chunkSize
		if end > total {
			end = total
		}
		batch := job.Rows[start:end]
		n := start/d.chunkSize + 1

		if err := d.submit(ctx, job, batch); err != nil {
			p.FailedBatches++
			logger.Error("batch failed",
				"job_id", job.ID, "batch", n, "rows", len(batch), "error", err)
		}
		p.Processed += len(batch)
		p.Percent = percent(p.Processed, total)
		d.emit(ctx, job, &p)
	}

	p.Percent = percent(p.Processed, total)
	if runErr == nil && p.FailedBatches > 0 {
		runErr = fmt.Errorf("%w: %d of %d", ErrBatchesFailed, p.FailedBatches, p.Batches)
	}

	status := domain.JobStatusComplete
	if runErr != nil {
		status = domain.JobStatusFailed
	}
	if ctx.Err() == nil {
		err := d.sink.ReportJobStatus(ctx, domain.JobStatusReport{
			Status:        status,
			FileName:      job.FileName,
			OperationType: job.Operation,
			TargetObject:  job.ObjectName,
		})
		if err != nil && runErr == nil {
			runErr = fmt.Errorf("%w: %v", ErrReportFailed, err)
		}
	}

	p.State = domain.UploadCompleted
	if runErr != nil {
		p.State = domain.UploadFailed
		p.Message = runErr.Error()
	}
	d.emit(ctx, job, &p)
	d.finishLedger(ctx, job, p, runErr)

	logger.Info("upload finished",
		"job_id", job.ID, "state", p.State, "processed", p.Processed,
		"failed_batches", p.FailedBatches, "percent", p.Percent)
	return p, runErr
}

func (d *Driver) submit(ctx context.Context, job Job, batch []csvfile.Record) error {
	records := make([]string, 0, len(batch))
	for _, rec := range batch {
		data, err := json.Marshal(rec.Filter(job.Columns))
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		records = append(records, string(data))
	}
	return d.sink.SubmitBatch(ctx, job.FileName, records)
}

func (d *Driver) emit(ctx context.Context, job Job, p *domain.UploadProgress) {
	p.UpdatedAt = d.now().UTC()
	if d.observe != nil {
		d.observe(ctx, *p)
	}
	if d.ledger != nil && job.ID != "" && p.State == domain.UploadUploading {
		if err := d.ledger.UpdateProgress(ctx, job.ID, *p); err != nil {
			logger.Warn("ledger progress update failed", "job_id", job.ID, "error", err)
		}
	}
}

func (d *Driver) startLedger(ctx context.Context, job Job, p domain.UploadProgress) {
	if d.ledger == nil || job.ID == "" {
		return
	}
	err := d.ledger.Start(ctx, &domain.ImportJob{
		ID:           job.ID,
		SessionID:    job.SessionID,
		FileName:     job.FileName,
		ObjectName:   job.ObjectName,
		Operation:    job.Operation,
		State:        p.State,
		TotalRecords: p.Total,
		ArchiveKey:   job.ArchiveKey,
		StartedAt:    d.now().UTC(),
	})
	if err != nil {
		logger.Warn("ledger start failed", "job_id", job.ID, "error", err)
	}
}

func (d *Driver) finishLedger(ctx context.Context, job Job, p domain.UploadProgress, runErr error) {
	if d.ledger == nil || job.ID == "" {
		return
	}
	// The ledger outlives a canceled upload.
	ctx = context.WithoutCancel(ctx)
	var msg string
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := d.ledger.Finish(ctx, job.ID, p, msg); err != nil {
		logger.Warn("ledger finish failed", "job_id", job.ID, "error", err)
	}
}

func batchCount(total, size int) int {
	return (total + size - 1) / size
}

// percent is floor(done/total*100). An empty upload is complete.
func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
