package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/httputil"
)

// JobReader reads the import job ledger.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error)
	ListJobs(ctx context.Context, limit int) ([]domain.ImportJob, error)
}

// WithJobs exposes the job ledger under /api/jobs.
func (h *Handlers) WithJobs(jobs JobReader) *Handlers {
	h.jobs = jobs
	return h
}

// HandleListJobs returns the most recent uploads.
// GET /api/jobs?limit=50
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httputil.NotFound(w, "job ledger not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	jobs, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]interface{}{"jobs": jobs, "total": len(jobs)})
}

// HandleGetJob returns one upload.
// GET /api/jobs/{jobId}
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httputil.NotFound(w, "job ledger not configured")
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.OK(w, job)
}
