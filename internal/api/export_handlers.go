package api

import (
	"net/http"

	"github.com/ignite/crm-import/internal/pkg/httputil"
	"github.com/ignite/crm-import/internal/service/export"
)

// ExportRequest is an export plus the identifier mappings built for it.
type ExportRequest struct {
	export.Request
	IdentifierMappings []export.IdentifierMapping `json:"identifier_mappings,omitempty"`
}

// HandleExport generates a CSV export and returns it as an attachment.
// POST /api/export
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	reg := export.NewRegistry()
	for _, m := range req.IdentifierMappings {
		if err := reg.Add(m.LookupField, m.Fields); err != nil {
			respondError(w, r, err, nil)
			return
		}
	}

	res, n, err := h.export.Export(r.Context(), req.Request, reg)
	if err != nil {
		respondError(w, r, err, &n)
		return
	}
	w.Header().Set("X-Notification", n.Message)
	httputil.CSV(w, res.FileName, string(res.CSV))
}
