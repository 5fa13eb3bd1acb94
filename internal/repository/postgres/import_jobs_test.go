package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-import/internal/domain"
)

func newMock(t *testing.T) (*ImportJobRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewImportJobRepo(db), mock
}

func TestImportJobStart(t *testing.T) {
	repo, mock := newMock(t)
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO import_jobs")).
		WithArgs(sqlmock.AnyArg(), "sess-1", "accounts.csv", "Account", "Insert", "uploading", 450, "", started).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &domain.ImportJob{
		SessionID:    "sess-1",
		FileName:     "accounts.csv",
		ObjectName:   "Account",
		Operation:    domain.OperationInsert,
		State:        domain.UploadUploading,
		TotalRecords: 450,
		StartedAt:    started,
	}
	require.NoError(t, repo.Start(context.Background(), job))
	assert.NotEmpty(t, job.ID, "an id is assigned")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobProgressAndFinish(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE import_jobs")).
		WithArgs("job-1", "uploading", 200, 0, 44).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE import_jobs")).
		WithArgs("job-1", "failed", 450, 1, 100, "1 of 3 batches failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(ctx, "job-1", domain.UploadProgress{State: domain.UploadUploading, Processed: 200, Percent: 44}))
	require.NoError(t, repo.Finish(ctx, "job-1", domain.UploadProgress{State: domain.UploadFailed, Processed: 450, Percent: 100, FailedBatches: 1}, "1 of 3 batches failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobUpdateMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE import_jobs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProgress(context.Background(), "nope", domain.UploadProgress{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

var jobRowColumns = []string{"id", "session_id", "file_name", "object_name", "operation", "state",
	"total_records", "processed_records", "failed_batches", "percent", "archive_key", "error",
	"started_at", "finished_at"}

func TestImportJobGet(t *testing.T) {
	repo, mock := newMock(t)
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM import_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("job-1", "sess-1", "accounts.csv", "Account", "Update", "completed", 450, 450, 0, 100, "imports/a.csv", "", started, finished))

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OperationUpdate, job.Operation)
	assert.Equal(t, domain.UploadCompleted, job.State)
	assert.Equal(t, "imports/a.csv", job.ArchiveKey)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, finished, *job.FinishedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM import_jobs WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(jobRowColumns))
	_, err = repo.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestImportJobList(t *testing.T) {
	repo, mock := newMock(t)
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM import_jobs")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("job-2", "sess-2", "b.csv", "Contact", "Insert", "uploading", 10, 0, 0, 0, "", "", started, nil).
			AddRow("job-1", "sess-1", "a.csv", "Account", "Insert", "completed", 5, 5, 0, 100, "", "", started, started))

	jobs, err := repo.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Nil(t, jobs[0].FinishedAt)
	assert.NotNil(t, jobs[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
