package api

import (
	"errors"
	"net/http"

	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/httputil"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/repository/postgres"
	"github.com/ignite/crm-import/internal/service/export"
	"github.com/ignite/crm-import/internal/service/wizard"
	"github.com/ignite/crm-import/internal/session"
	"github.com/ignite/crm-import/internal/storage"
)

// failureResponse is the error envelope plus the toast a client shows.
type failureResponse struct {
	Error        string               `json:"error"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// respondError maps a service error to a status code. Validation messages
// are meant for the user and are sent as is; internal errors never are.
func respondError(w http.ResponseWriter, r *http.Request, err error, n *notify.Notification) {
	status := statusFor(err)

	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		httputil.InternalError(w, err)
		return
	case status == http.StatusBadGateway:
		logger.Warn("upstream failure", "path", r.URL.Path, "error", err.Error())
		msg = "platform request failed"
		if n != nil && n.Message != "" {
			msg = n.Message
		}
	}
	if n != nil {
		httputil.JSON(w, status, failureResponse{Error: msg, Notification: n})
		return
	}

	switch status {
	case http.StatusNotFound:
		httputil.NotFound(w, msg)
	case http.StatusConflict:
		httputil.Conflict(w, msg)
	case http.StatusBadRequest:
		httputil.BadRequest(w, msg)
	case http.StatusBadGateway:
		httputil.BadGateway(w, msg)
	default:
		httputil.UnprocessableEntity(w, msg)
	}
}

func statusFor(err error) int {
	var ve *wizard.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, storage.ErrJobNotFound), errors.Is(err, postgres.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrUnsupportedAction):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrPlatform), errors.Is(err, export.ErrExportFailed):
		return http.StatusBadGateway
	case errors.Is(err, export.ErrNoObject), errors.Is(err, export.ErrNoFields),
		errors.Is(err, export.ErrNoLookupField), errors.Is(err, export.ErrNoIdentifierFields),
		errors.Is(err, export.ErrDuplicateIdentifier):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
