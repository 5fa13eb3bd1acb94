package ingest

import "errors"

var (
	ErrNoSink        = errors.New("no batch sink configured")
	ErrBatchesFailed = errors.New("one or more batches failed")
	ErrReportFailed  = errors.New("job status report failed")
)
