package domain

import "time"

// UploadState is the lifecycle of a chunked upload.
type UploadState string

const (
	UploadIdle      UploadState = "idle"
	UploadUploading UploadState = "uploading"
	UploadCompleted UploadState = "completed"
	UploadFailed    UploadState = "failed"
)

// Terminal reports whether no further progress will be made.
func (s UploadState) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// Job tracker statuses reported to the platform when an upload ends.
const (
	JobStatusComplete = "Upload Complete"
	JobStatusFailed   = "Upload Failed"
)

// ImportJob is the local ledger row for one upload.
type ImportJob struct {
	ID               string      `json:"id" db:"id"`
	SessionID        string      `json:"session_id" db:"session_id"`
	FileName         string      `json:"file_name" db:"file_name"`
	ObjectName       string      `json:"object_name" db:"object_name"`
	Operation        Operation   `json:"operation" db:"operation"`
	State            UploadState `json:"state" db:"state"`
	TotalRecords     int         `json:"total_records" db:"total_records"`
	ProcessedRecords int         `json:"processed_records" db:"processed_records"`
	FailedBatches    int         `json:"failed_batches" db:"failed_batches"`
	Percent          int         `json:"percent" db:"percent"`
	ArchiveKey       string      `json:"archive_key,omitempty" db:"archive_key"`
	Error            string      `json:"error,omitempty" db:"error"`
	StartedAt        time.Time   `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
}

// UploadProgress is the live progress of an upload.
type UploadProgress struct {
	State         UploadState `json:"state"`
	Total         int         `json:"total"`
	Processed     int         `json:"processed"`
	Percent       int         `json:"percent"`
	Batches       int         `json:"batches"`
	FailedBatches int         `json:"failed_batches"`
	Message       string      `json:"message,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// JobStatusReport is sent to the platform's job tracker once every batch
// of an upload has been dispatched.
type JobStatusReport struct {
	Status        string    `json:"status"`
	FileName      string    `json:"fileName"`
	OperationType Operation `json:"operationType"`
	TargetObject  string    `json:"targetObject"`
}
