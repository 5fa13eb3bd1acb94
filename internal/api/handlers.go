package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/notify"
	"github.com/ignite/crm-import/internal/pkg/httputil"
	"github.com/ignite/crm-import/internal/service/export"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/service/wizard"
	"github.com/ignite/crm-import/internal/session"
)

// Handlers serves the wizard and export endpoints.
type Handlers struct {
	wizard       *wizard.Service
	export       *export.Service
	jobs         JobReader
	maxBodyBytes int64
}

// NewHandlers creates the API handlers. maxBodyBytes bounds session
// uploads; zero disables the limit.
func NewHandlers(w *wizard.Service, e *export.Service, maxBodyBytes int64) *Handlers {
	return &Handlers{wizard: w, export: e, maxBodyBytes: maxBodyBytes}
}

// =============================================================================
// Objects and sessions
// =============================================================================

// HandleListObjects returns the objects a file can be imported into.
// GET /api/objects
func (h *Handlers) HandleListObjects(w http.ResponseWriter, r *http.Request) {
	objs, err := h.wizard.ListTargetObjects(r.Context())
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"objects":    objs,
		"operations": domain.Operations,
	})
}

// CreateSessionRequest starts a wizard session from CSV text. Multipart
// uploads use the "file" field instead.
type CreateSessionRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// HandleCreateSession starts a session for an uploaded file.
// POST /api/sessions
// Accepts: application/json {file_name, content} or multipart/form-data "file"
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		// Leave room for the multipart envelope.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes+1<<20)
	}

	var req CreateSessionRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, "file is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			httputil.BadRequest(w, "could not read file: "+err.Error())
			return
		}
		req = CreateSessionRequest{FileName: header.Filename, Content: string(data)}
	} else if !httputil.Decode(w, r, &req) {
		return
	}
	if req.FileName == "" {
		httputil.BadRequest(w, "file_name is required")
		return
	}

	sess, err := h.wizard.Create(r.Context(), req.FileName, req.Content)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.Created(w, wizard.NewView(sess))
}

// HandleGetSession returns the session view.
// GET /api/sessions/{id}
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizard.Get(r.Context(), chi.URLParam(r, "id"))
	h.respondSession(w, r, sess, err)
}

// HandleDiscardSession drops the session and its file.
// DELETE /api/sessions/{id}
func (h *Handlers) HandleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := h.wizard.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.NoContent(w)
}

// HandleReset returns every mapping row to its header default.
// POST /api/sessions/{id}/reset
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizard.Reset(r.Context(), chi.URLParam(r, "id"))
	h.respondSession(w, r, sess, err)
}

// SelectTargetRequest picks the object and operation.
type SelectTargetRequest struct {
	ObjectName string `json:"object_name"`
	Operation  string `json:"operation"`
}

// HandleSelectTarget records the target and loads its field catalog.
// PUT /api/sessions/{id}/target
func (h *Handlers) HandleSelectTarget(w http.ResponseWriter, r *http.Request) {
	var req SelectTargetRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		httputil.UnprocessableEntity(w, err.Error())
		return
	}
	sess, err := h.wizard.SelectTarget(r.Context(), chi.URLParam(r, "id"), req.ObjectName, op)
	h.respondSession(w, r, sess, err)
}

// =============================================================================
// Cells
// =============================================================================

// CellRequest addresses one mapping row. Which other fields are read
// depends on the endpoint.
type CellRequest struct {
	KeyField    string   `json:"key_field"`
	Field       string   `json:"field,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	WhereClause string   `json:"where_clause,omitempty"`
	LookupField string   `json:"lookup_field,omitempty"`
	Column      string   `json:"column,omitempty"`
}

func (h *Handlers) decodeCell(w http.ResponseWriter, r *http.Request) (CellRequest, bool) {
	var req CellRequest
	if !httputil.Decode(w, r, &req) {
		return req, false
	}
	if req.KeyField == "" {
		httputil.BadRequest(w, "key_field is required")
		return req, false
	}
	return req, true
}

// HandleSelectField picks the target field of a row.
// PUT /api/sessions/{id}/cells/field
func (h *Handlers) HandleSelectField(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCell(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.SelectField(r.Context(), chi.URLParam(r, "id"), req.KeyField, req.Field)
	h.respondSession(w, r, sess, err)
}

// HandleSelectLookupFields sets the related fields used to match a lookup.
// PUT /api/sessions/{id}/cells/lookup-fields
func (h *Handlers) HandleSelectLookupFields(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCell(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.SelectLookupFields(r.Context(), chi.URLParam(r, "id"), req.KeyField, req.Fields)
	h.respondSession(w, r, sess, err)
}

// HandleSetWhereClause sets the lookup filter of a row.
// PUT /api/sessions/{id}/cells/where
func (h *Handlers) HandleSetWhereClause(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCell(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.SetWhereClause(r.Context(), chi.URLParam(r, "id"), req.KeyField, req.WhereClause)
	h.respondSession(w, r, sess, err)
}

// HandleSetExtraCSVField picks the column feeding one related field.
// PUT /api/sessions/{id}/cells/extra-csv-field
func (h *Handlers) HandleSetExtraCSVField(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCell(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.SetExtraCSVField(r.Context(), chi.URLParam(r, "id"), req.KeyField, req.LookupField, req.Column)
	h.respondSession(w, r, sess, err)
}

// HandleSetCompositePart picks the related field matched by one column of
// a composite lookup.
// PUT /api/sessions/{id}/cells/parts
func (h *Handlers) HandleSetCompositePart(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCell(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.SetCompositePart(r.Context(), chi.URLParam(r, "id"), req.KeyField, req.Column, req.Field)
	h.respondSession(w, r, sess, err)
}

// =============================================================================
// Reducer actions
// =============================================================================

type headerRequest struct {
	Header string `json:"header"`
}

type keyFieldRequest struct {
	KeyField string `json:"key_field"`
}

type columnRequest struct {
	Column  string `json:"column"`
	Checked bool   `json:"checked"`
}

type modeRequest struct {
	Mode mapping.UniqueKeyMode `json:"mode"`
}

// HandleAddMapping maps a header a second time.
// POST /api/sessions/{id}/mappings
func (h *Handlers) HandleAddMapping(w http.ResponseWriter, r *http.Request) {
	var req headerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, mapping.AdditionalMappingAdded{Header: req.Header})
}

// HandleDeleteMapping removes a mapping row.
// DELETE /api/sessions/{id}/mappings
func (h *Handlers) HandleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	var req keyFieldRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, mapping.MappingDeleted{KeyField: req.KeyField})
}

// HandleAddSection opens a composite key section.
// POST /api/sessions/{id}/sections
func (h *Handlers) HandleAddSection(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, mapping.SectionAdded{})
}

// HandleToggleSectionColumn checks or unchecks a section column.
// PUT /api/sessions/{id}/sections/{sid}/columns
func (h *Handlers) HandleToggleSectionColumn(w http.ResponseWriter, r *http.Request) {
	sid, ok := intParam(w, r, "sid")
	if !ok {
		return
	}
	var req columnRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, mapping.SectionColumnToggled{SectionID: sid, Column: req.Column, Checked: req.Checked})
}

// HandleCreateComposite turns a section's columns into a composite entry.
// POST /api/sessions/{id}/sections/{sid}/composite
func (h *Handlers) HandleCreateComposite(w http.ResponseWriter, r *http.Request) {
	sid, ok := intParam(w, r, "sid")
	if !ok {
		return
	}
	h.dispatch(w, r, mapping.CompositeCreated{SectionID: sid})
}

// HandleDeleteSection removes an unmapped section.
// DELETE /api/sessions/{id}/sections/{sid}
func (h *Handlers) HandleDeleteSection(w http.ResponseWriter, r *http.Request) {
	sid, ok := intParam(w, r, "sid")
	if !ok {
		return
	}
	h.dispatch(w, r, mapping.SectionDeleted{SectionID: sid})
}

// HandleDeleteComposite removes a composite entry and its section.
// DELETE /api/sessions/{id}/composites/{cid}
func (h *Handlers) HandleDeleteComposite(w http.ResponseWriter, r *http.Request) {
	cid, ok := intParam(w, r, "cid")
	if !ok {
		return
	}
	h.dispatch(w, r, mapping.CompositeDeleted{ID: cid})
}

// HandleSetUniqueKeyMode switches between single and multi column keys.
// PUT /api/sessions/{id}/unique-key/mode
func (h *Handlers) HandleSetUniqueKeyMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, mapping.UniqueKeyModeSet{Mode: req.Mode})
}

// HandleToggleUniqueKeyColumn checks or unchecks a unique key column.
// PUT /api/sessions/{id}/unique-key/columns
func (h *Handlers) HandleToggleUniqueKeyColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, mapping.UniqueKeyColumnToggled{Column: req.Column, Checked: req.Checked})
}

// HandleCreateUniqueKey creates the key from the checked columns.
// POST /api/sessions/{id}/unique-key
func (h *Handlers) HandleCreateUniqueKey(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, mapping.UniqueKeyCreated{})
}

// HandleClearUniqueKey removes the key.
// DELETE /api/sessions/{id}/unique-key
func (h *Handlers) HandleClearUniqueKey(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, mapping.UniqueKeyCleared{})
}

// =============================================================================
// Submission
// =============================================================================

// HandleSaveConfiguration validates the mapping and saves it on the platform.
// POST /api/sessions/{id}/configuration
func (h *Handlers) HandleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, n, err := h.wizard.SaveConfiguration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, &n)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"configuration": cfg,
		"notification":  n,
	})
}

// UploadRequest picks the mapping an upload relies on. An empty body or
// mode uses the session's mapping; "existing" uses the configuration
// already saved on the platform.
type UploadRequest struct {
	Mode string `json:"mode"`
}

// HandleStartUpload starts the chunked upload in the background.
// POST /api/sessions/{id}/upload
func (h *Handlers) HandleStartUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}
	mode, err := wizard.ParseUploadMode(req.Mode)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	n, err := h.wizard.StartUpload(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil {
		var np *notify.Notification
		if n.Message != "" {
			np = &n
		}
		respondError(w, r, err, np)
		return
	}
	httputil.JSON(w, http.StatusAccepted, map[string]interface{}{"notification": n})
}

// HandleProgress returns the latest upload progress.
// GET /api/sessions/{id}/progress
func (h *Handlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.wizard.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.OK(w, p)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, a mapping.Action) {
	sess, err := h.wizard.Dispatch(r.Context(), chi.URLParam(r, "id"), a)
	h.respondSession(w, r, sess, err)
}

func (h *Handlers) respondSession(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	httputil.OK(w, wizard.NewView(sess))
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "invalid "+name)
		return 0, false
	}
	return n, true
}
