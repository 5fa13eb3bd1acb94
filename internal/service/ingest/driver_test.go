package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ignite/crm-import/internal/csvfile"
	"github.com/ignite/crm-import/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	batches   [][]string
	reports   []domain.JobStatusReport
	failBatch map[int]bool
	reportErr error
	onBatch   func(n int)
}

func (f *fakeSink) SubmitBatch(_ context.Context, fileName string, records []string) error {
	f.mu.Lock()
	f.batches = append(f.batches, records)
	n := len(f.batches)
	f.mu.Unlock()
	if f.onBatch != nil {
		f.onBatch(n)
	}
	if f.failBatch[n] {
		return fmt.Errorf("platform rejected batch %d", n)
	}
	return nil
}

func (f *fakeSink) ReportJobStatus(_ context.Context, r domain.JobStatusReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.reportErr
}

type memLedger struct {
	started  []domain.ImportJob
	updates  []domain.UploadProgress
	finished []domain.UploadProgress
	errMsg   string
}

func (m *memLedger) Start(_ context.Context, job *domain.ImportJob) error {
	m.started = append(m.started, *job)
	return nil
}

func (m *memLedger) UpdateProgress(_ context.Context, _ string, p domain.UploadProgress) error {
	m.updates = append(m.updates, p)
	return nil
}

func (m *memLedger) Finish(_ context.Context, _ string, p domain.UploadProgress, errMsg string) error {
	m.finished = append(m.finished, p)
	m.errMsg = errMsg
	return nil
}

func rows(t *testing.T, n int) []csvfile.Record {
	t.Helper()
	text := "Id,Name,Email\n"
	for i := 0; i < n; i++ {
		text += fmt.Sprintf("%d,Acme %d,ops%d@acme.io\n", i, i, i)
	}
	f, err := csvfile.Parse(text)
	require.NoError(t, err)
	require.Len(t, f.Rows, n)
	return f.Rows
}

func testJob(t *testing.T, n int) Job {
	return Job{
		ID:         "job-1",
		FileName:   "accounts.csv",
		ObjectName: "Account",
		Operation:  domain.OperationInsert,
		Rows:       rows(t, n),
	}
}

func TestRunSplitsIntoSequentialBatches(t *testing.T) {
	sink := &fakeSink{}
	var seen []domain.UploadProgress
	d := NewDriver(sink, WithObserver(func(_ context.Context, p domain.UploadProgress) {
		seen = append(seen, p)
	}))

	p, err := d.Run(context.Background(), testJob(t, 450))
	require.NoError(t, err)

	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 200)
	assert.Len(t, sink.batches[1], 200)
	assert.Len(t, sink.batches[2], 50)
	assert.JSONEq(t, `{"Id":"0","Name":"Acme 0","Email":"ops0@acme.io"}`, sink.batches[0][0])
	assert.JSONEq(t, `{"Id":"449","Name":"Acme 449","Email":"ops449@acme.io"}`, sink.batches[2][49])

	assert.Equal(t, domain.UploadCompleted, p.State)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, 450, p.Processed)
	assert.Equal(t, 3, p.Batches)

	var percents []int
	for _, s := range seen {
		percents = append(percents, s.Percent)
	}
	assert.Equal(t, []int{0, 44, 88, 100, 100}, percents)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, domain.JobStatusReport{
		Status:        domain.JobStatusComplete,
		FileName:      "accounts.csv",
		OperationType: domain.OperationInsert,
		TargetObject:  "Account",
	}, sink.reports[0])
}

func TestRunContinuesAfterFailedBatch(t *testing.T) {
	sink := &fakeSink{failBatch: map[int]bool{2: true}}
	ledger := &memLedger{}
	d := NewDriver(sink, WithChunkSize(100), WithLedger(ledger))

	p, err := d.Run(context.Background(), testJob(t, 250))
	assert.ErrorIs(t, err, ErrBatchesFailed)

	assert.Len(t, sink.batches, 3)
	assert.Equal(t, domain.UploadFailed, p.State)
	assert.Equal(t, 1, p.FailedBatches)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, domain.JobStatusFailed, sink.reports[0].Status)

	require.Len(t, ledger.started, 1)
	assert.Equal(t, 250, ledger.started[0].TotalRecords)
	assert.Len(t, ledger.updates, 4)
	require.Len(t, ledger.finished, 1)
	assert.Equal(t, domain.UploadFailed, ledger.finished[0].State)
	assert.Contains(t, ledger.errMsg, "1 of 3")
}

func TestRunFiltersToMappedColumns(t *testing.T) {
	sink := &fakeSink{}
	job := testJob(t, 2)
	job.Columns = []string{"Email", "Id"}

	_, err := NewDriver(sink).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, `{"Id":"0","Email":"ops0@acme.io"}`, sink.batches[0][0])
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{onBatch: func(n int) {
		if n == 1 {
			cancel()
		}
	}}

	p, err := NewDriver(sink, WithChunkSize(10)).Run(ctx, testJob(t, 35))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.batches, 1)
	assert.Empty(t, sink.reports)
	assert.Equal(t, domain.UploadFailed, p.State)
	assert.Equal(t, 28, p.Percent)
}

func TestRunReportFailure(t *testing.T) {
	sink := &fakeSink{reportErr: errors.New("tracker down")}

	p, err := NewDriver(sink).Run(context.Background(), testJob(t, 5))
	assert.ErrorIs(t, err, ErrReportFailed)
	assert.Equal(t, domain.UploadFailed, p.State)
	assert.Equal(t, 100, p.Percent)
}

func TestRunEmptyUpload(t *testing.T) {
	sink := &fakeSink{}

	p, err := NewDriver(sink).Run(context.Background(), Job{FileName: "empty.csv"})
	require.NoError(t, err)
	assert.Empty(t, sink.batches)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, domain.UploadCompleted, p.State)
	assert.Len(t, sink.reports, 1)
}

func TestRunWithoutSink(t *testing.T) {
	_, err := NewDriver(nil).Run(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestPercentIsFloor(t *testing.T) {
	assert.Equal(t, 33, percent(1, 3))
	assert.Equal(t, 66, percent(2, 3))
	assert.Equal(t, 100, percent(3, 3))
	assert.Equal(t, 100, percent(0, 0))
}
