package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/crm-import/internal/csvfile"
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/service/ingest"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/session"
)

// SaveConfiguration validates the mapping and persists it on the platform.
// A validation failure never reaches the platform. A platform failure
// leaves the session as it was.
func (s *Service) SaveConfiguration(ctx context.Context, id string) (domain.Configuration, notify.Notification, error) {
	var cfg domain.Configuration
	_, err := s.mutate(ctx, id, func(sess *session.Session) error {
		built, err := mapping.BuildConfiguration(sess.State)
		if err != nil {
			return invalid(err)
		}
		cfg = built
		return nil
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return cfg, s.messages.Error(ve), err
		}
		return cfg, s.messages.Render(notify.ConfigFailed, nil), err
	}

	if err := s.platform.SaveConfiguration(ctx, cfg); err != nil {
		logger.Error("save configuration failed",
			"session_id", id, "object", cfg.ObjectName, "operation", cfg.OperationType, "error", err.Error())
		return cfg, s.messages.Render(notify.ConfigFailed, nil), platformError("save configuration", err)
	}

	logger.Info("configuration saved",
		"session_id", id, "object", cfg.ObjectName, "operation", cfg.OperationType, "entries", len(cfg.Mapping))
	return cfg, s.messages.Render(notify.ConfigSaved, notify.Vars{"object": cfg.ObjectName}), nil
}

// UploadMode selects the mapping an upload relies on.
type UploadMode string

const (
	// UploadWithMapping validates the session's mapping and sends only the
	// mapped columns.
	UploadWithMapping UploadMode = "mapping"
	// UploadWithExistingMapping relies on a configuration already saved on
	// the platform. Only the object and operation are checked and every
	// column is sent.
	UploadWithExistingMapping UploadMode = "existing"
)

// ParseUploadMode maps an API value to a mode. Empty means
// UploadWithMapping.
func ParseUploadMode(s string) (UploadMode, error) {
	switch m := UploadMode(s); m {
	case "":
		return UploadWithMapping, nil
	case UploadWithMapping, UploadWithExistingMapping:
		return m, nil
	}
	return "", invalid(fmt.Errorf("%w: %q", ErrUnknownUploadMode, s))
}

// upload is a prepared upload: the job plus the raw text to archive.
type upload struct {
	job  ingest.Job
	text string
}

// prepare validates the session for mode and marks it as uploading.
func (s *Service) prepare(ctx context.Context, id string, mode UploadMode) (upload, error) {
	var up upload
	_, err := s.mutate(ctx, id, func(sess *session.Session) error {
		columns, err := uploadColumns(sess.State, mode)
		if err != nil {
			return invalid(err)
		}
		p, err := s.store.LoadProgress(ctx, id)
		if err != nil {
			return err
		}
		if p.State == domain.UploadUploading {
			return invalid(ErrUploadInProgress)
		}

		text, err := s.store.LoadFile(ctx, id)
		if err != nil {
			return err
		}
		file, err := csvfile.Parse(text)
		if err != nil {
			return invalid(err)
		}

		sess.JobID = s.newID()
		up = upload{
			text: text,
			job: ingest.Job{
				ID:         sess.JobID,
				SessionID:  sess.ID,
				FileName:   sess.FileName,
				ObjectName: sess.State.ObjectName,
				Operation:  sess.State.Operation,
				Rows:       file.Rows,
				Columns:    columns,
			},
		}
		return s.store.SaveProgress(ctx, id, domain.UploadProgress{
			State:     domain.UploadUploading,
			Total:     len(file.Rows),
			UpdatedAt: s.now().UTC(),
		})
	})
	return up, err
}

// uploadColumns checks st for mode and returns the column filter. A nil
// filter sends every column.
func uploadColumns(st mapping.State, mode UploadMode) ([]string, error) {
	switch mode {
	case UploadWithExistingMapping:
		if st.ObjectName == "" {
			return nil, mapping.ErrNoObject
		}
		if !st.Operation.Valid() {
			return nil, mapping.ErrNoOperation
		}
		return nil, nil
	case UploadWithMapping, "":
		if err := mapping.Validate(st); err != nil {
			return nil, err
		}
		return st.MappedColumns(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownUploadMode, mode)
}

// run archives the file when configured and submits every batch.
func (s *Service) run(ctx context.Context, up upload) (domain.UploadProgress, error) {
	job := up.job
	if s.archiver != nil {
		key, err := s.archiver.ArchiveCSV(ctx, job.SessionID, job.FileName, up.text)
		if err != nil {
			// The archive is a convenience copy; the upload goes ahead.
			logger.Warn("continuing upload without archive", "session_id", job.SessionID, "error", err.Error())
		}
		job.ArchiveKey = key
	}

	driver := ingest.NewDriver(s.sink,
		ingest.WithChunkSize(s.chunkSize),
		ingest.WithLedger(s.ledger),
		ingest.WithObserver(func(ctx context.Context, p domain.UploadProgress) {
			if p.State.Terminal() {
				return
			}
			if err := s.store.SaveProgress(ctx, job.SessionID, p); err != nil {
				logger.Warn("progress save failed", "session_id", job.SessionID, "error", err.Error())
			}
		}),
	)
	p, runErr := driver.Run(ctx, job)

	vars := notify.Vars{
		"file_name":      job.FileName,
		"verb":           job.Operation.PastTense(),
		"processed":      p.Processed,
		"total":          p.Total,
		"batches":        p.Batches,
		"failed_batches": p.FailedBatches,
	}
	if runErr != nil {
		if !errors.Is(runErr, ingest.ErrBatchesFailed) {
			vars["error"] = runErr.Error()
		}
		p.Message = s.messages.Render(notify.UploadFailed, vars).Message
	} else {
		p.Message = s.messages.Render(notify.UploadCompleted, vars).Message
	}

	// The final state is recorded even when the upload was canceled.
	if err := s.store.SaveProgress(context.WithoutCancel(ctx), job.SessionID, p); err != nil {
		logger.Error("final progress save failed", "session_id", job.SessionID, "error", err.Error())
	}
	return p, runErr
}

// Upload submits the session's rows and waits for the result.
func (s *Service) Upload(ctx context.Context, id string, mode UploadMode) (domain.UploadProgress, error) {
	up, err := s.prepare(ctx, id, mode)
	if err != nil {
		return domain.UploadProgress{}, err
	}
	return s.run(ctx, up)
}

// StartUpload starts the upload in the background and returns the
// acknowledgement shown to the user. Progress is read with Progress.
func (s *Service) StartUpload(ctx context.Context, id string, mode UploadMode) (notify.Notification, error) {
	up, err := s.prepare(ctx, id, mode)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return s.messages.Error(ve), err
		}
		return notify.Notification{}, err
	}

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), s.uploadTimeout)
		defer cancel()
		if _, err := s.run(runCtx, up); err != nil {
			logger.Warn("upload finished with errors", "session_id", up.job.SessionID, "job_id", up.job.ID, "error", err.Error())
		}
	}()

	return s.messages.Render(notify.UploadStarted, notify.Vars{"verb": up.job.Operation.PastTense()}), nil
}

// Progress returns the latest upload progress of a session.
func (s *Service) Progress(ctx context.Context, id string) (domain.UploadProgress, error) {
	if _, err := s.store.Load(ctx, id); err != nil {
		return domain.UploadProgress{}, err
	}
	p, err := s.store.LoadProgress(ctx, id)
	if err != nil {
		return domain.UploadProgress{}, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}
