// Package session persists wizard sessions: the mapping state, the raw CSV
// text, upload progress and a per-session lock.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/catalog"
	"github.com/ignite/crm-import/internal/service/mapping"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrNoFile   = errors.New("session file not found")
	ErrLocked   = errors.New("session is busy")
)

// Session is one import wizard in progress.
type Session struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	TotalRecords int       `json:"total_records"`
	Skipped      int       `json:"skipped"`
	SkippedLines []int     `json:"skipped_lines,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	State   mapping.State            `json:"state"`
	Cells   map[string]*mapping.Cell `json:"cells"`
	Catalog catalog.Cache            `json:"catalog"`

	// JobID is set once an upload has been started.
	JobID string `json:"job_id,omitempty"`
}

// Store is the storage contract shared by the Redis and in-memory stores.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error

	SaveFile(ctx context.Context, id, text string) error
	LoadFile(ctx context.Context, id string) (string, error)

	SaveProgress(ctx context.Context, id string, p domain.UploadProgress) error
	LoadProgress(ctx context.Context, id string) (domain.UploadProgress, error)

	// Lock blocks until the session lock is held or ctx ends. The returned
	// func releases it.
	Lock(ctx context.Context, id string) (func(), error)
}
