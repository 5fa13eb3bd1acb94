package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

// DefaultFileName is the download name of every export.
const DefaultFileName = "export.csv"

// Generator produces the CSV text of an export.
type Generator interface {
	GenerateExportCSV(ctx context.Context, object string, fields []string) ([]byte, error)
}

// Request describes one export.
type Request struct {
	ObjectName       string   `json:"object_name"`
	FieldNames       []string `json:"field_names"`
	IdentifierFields []string `json:"identifier_fields,omitempty"`
}

// Result is a generated export.
type Result struct {
	FileName string   `json:"file_name"`
	Fields   []string `json:"fields"`
	CSV      []byte   `json:"-"`
}

// Service runs exports.
type Service struct {
	gen      Generator
	messages *notify.Messages
}

// NewService creates an export service. A nil messages uses the defaults.
func NewService(gen Generator, messages *notify.Messages) *Service {
	if messages == nil {
		messages = notify.Default()
	}
	return &Service{gen: gen, messages: messages}
}

// Export generates the CSV for req. The requested fields are followed by the
// identifier fields of req and of reg (which may be nil), without repeats.
func (s *Service) Export(ctx context.Context, req Request, reg *Registry) (Result, notify.Notification, error) {
	object := strings.TrimSpace(req.ObjectName)
	if object == "" {
		return Result{}, s.messages.Error(ErrNoObject), ErrNoObject
	}
	fields := dedupe(req.FieldNames)
	if len(fields) == 0 {
		return Result{}, s.messages.Error(ErrNoFields), ErrNoFields
	}

	all := append(fields, req.IdentifierFields...)
	if reg != nil {
		all = append(all, reg.Fields()...)
	}
	all = dedupe(all)

	csv, err := s.gen.GenerateExportCSV(ctx, object, all)
	if err != nil {
		logger.Error("export failed", "object", object, "fields", len(all), "error", err.Error())
		vars := notify.Vars{"object": object, "error": err.Error()}
		return Result{}, s.messages.Render(notify.ExportFailed, vars), fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	logger.Info("export generated", "object", object, "fields", len(all), "bytes", len(csv))
	res := Result{FileName: DefaultFileName, Fields: all, CSV: csv}
	return res, s.messages.Render(notify.ExportDone, notify.Vars{"object": object}), nil
}
