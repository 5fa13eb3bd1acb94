package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-import/internal/csvfile"
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/service/ingest"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/session"
)

// Platform is the metadata and configuration side of the platform.
type Platform interface {
	ListTargetObjects(ctx context.Context) ([]domain.TargetObject, error)
	ListFields(ctx context.Context, object string) ([]domain.Field, error)
	ResolveLookupFields(ctx context.Context, parent, field string) (domain.LookupFields, error)
	SaveConfiguration(ctx context.Context, cfg domain.Configuration) error
}

// Archiver keeps a copy of the raw CSV before ingestion. An empty key
// means nothing was archived.
type Archiver interface {
	ArchiveCSV(ctx context.Context, sessionID, fileName, text string) (string, error)
}

// Service runs wizard sessions.
type Service struct {
	platform Platform
	store    session.Store
	sink     ingest.Sink
	ledger   ingest.Ledger
	archiver Archiver
	messages *notify.Messages

	chunkSize     int
	primaryKey    string
	maxFileBytes  int64
	uploadTimeout time.Duration

	newID func() string
	now   func() time.Time

	uploads sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithLedger records uploads in l.
func WithLedger(l ingest.Ledger) Option { return func(s *Service) { s.ledger = l } }

// WithArchiver archives every raw CSV before its upload starts.
func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

// WithMessages overrides the notification templates.
func WithMessages(m *notify.Messages) Option { return func(s *Service) { s.messages = m } }

// WithChunkSize sets the upload batch size.
func WithChunkSize(n int) Option { return func(s *Service) { s.chunkSize = n } }

// WithPrimaryKeyField sets the API name of the record id field.
func WithPrimaryKeyField(f string) Option { return func(s *Service) { s.primaryKey = f } }

// WithMaxFileBytes rejects larger uploads. Zero disables the limit.
func WithMaxFileBytes(n int64) Option { return func(s *Service) { s.maxFileBytes = n } }

// WithUploadTimeout bounds each background upload.
func WithUploadTimeout(d time.Duration) Option { return func(s *Service) { s.uploadTimeout = d } }

// NewService creates a wizard service.
func NewService(p Platform, store session.Store, sink ingest.Sink, opts ...Option) *Service {
	s := &Service{
		platform:      p,
		store:         store,
		sink:          sink,
		chunkSize:     ingest.DefaultChunkSize,
		primaryKey:    domain.DefaultPrimaryKeyField,
		uploadTimeout: time.Hour,
		newID:         func() string { return uuid.New().String() },
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.messages == nil {
		s.messages = notify.Default()
	}
	if s.primaryKey == "" {
		s.primaryKey = domain.DefaultPrimaryKeyField
	}
	if s.chunkSize <= 0 {
		s.chunkSize = ingest.DefaultChunkSize
	}
	return s
}

// Messages returns the notification templates in use.
func (s *Service) Messages() *notify.Messages { return s.messages }

// Wait blocks until every background upload has finished.
func (s *Service) Wait() { s.uploads.Wait() }

// =============================================================================
// Session plumbing
// =============================================================================

// mutate runs fn on the session under its lock and saves the result. When
// fn fails nothing is saved.
func (s *Service) mutate(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	unlock, err := s.store.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// apply runs a through the reducer and keeps the cells in step with the
// resulting entries.
func apply(sess *session.Session, a mapping.Action) error {
	next, err := mapping.Apply(sess.State, a)
	if err != nil {
		return invalid(err)
	}
	sess.State = next
	sess.Cells = mapping.ReconcileCells(sess.Cells, next.Entries)
	return nil
}

func cell(sess *session.Session, keyField string) (*mapping.Cell, error) {
	c, ok := sess.Cells[keyField]
	if !ok {
		return nil, invalid(mapping.ErrUnknownKeyField)
	}
	return c, nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// ListTargetObjects returns the objects the user can import into.
func (s *Service) ListTargetObjects(ctx context.Context) ([]domain.TargetObject, error) {
	objs, err := s.platform.ListTargetObjects(ctx)
	if err != nil {
		return nil, platformError("list objects", err)
	}
	return objs, nil
}

// Create starts a session for an uploaded file.
func (s *Service) Create(ctx context.Context, fileName, text string) (*session.Session, error) {
	if s.maxFileBytes > 0 && int64(len(text)) > s.maxFileBytes {
		return nil, invalid(ErrFileTooLarge)
	}
	file, err := csvfile.Parse(text)
	if err != nil {
		return nil, invalid(err)
	}

	now := s.now().UTC()
	name := csvfile.SanitizeFileName(fileName)
	sess := &session.Session{
		ID:           s.newID(),
		FileName:     name,
		TotalRecords: file.TotalRecords,
		Skipped:      file.Skipped,
		SkippedLines: file.SkippedLines,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sess.Catalog.PrimaryKey = s.primaryKey
	if err := apply(sess, mapping.FileLoaded{FileName: name, Headers: file.Columns}); err != nil {
		return nil, err
	}

	if err := s.store.SaveFile(ctx, sess.ID, text); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	logger.Info("import session created",
		"session_id", sess.ID, "file_name", name, "columns", len(file.Columns),
		"total_records", file.TotalRecords, "skipped", file.Skipped)
	return sess, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Load(ctx, id)
}

// Discard drops a session and its file.
func (s *Service) Discard(ctx context.Context, id string) error {
	unlock, err := s.store.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.store.Load(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Reset returns every entry to its header default.
func (s *Service) Reset(ctx context.Context, id string) (*session.Session, error) {
	return s.mutate(ctx, id, func(sess *session.Session) error {
		for _, c := range sess.Cells {
			c.Reset()
		}
		return apply(sess, mapping.Reset{})
	})
}

// Dispatch applies a reducer action that has no cell involvement:
// additional mappings, deletions, composite sections and the unique key.
func (s *Service) Dispatch(ctx context.Context, id string, a mapping.Action) (*session.Session, error) {
	switch a.(type) {
	case mapping.FieldChanged, mapping.FileLoaded, mapping.TargetSelected, mapping.Reset:
		return nil, ErrUnsupportedAction
	}
	return s.mutate(ctx, id, func(sess *session.Session) error {
		return apply(sess, a)
	})
}
