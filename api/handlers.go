/*
handlers.go - HTTP API handlers for the master-sheet admin backend

PURPOSE:
  Exposes the session engine and the reconciliation runner via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Sheet:
    GET    /api/sheet/fields      Declared field schema
    POST   /api/sheet/pages       Load and merge the next page
    GET    /api/sheet/records     Effective records (cache + pending)
    GET    /api/sheet/records/{id} One effective record
    GET    /api/sheet/edits       Pending edits and count
    POST   /api/sheet/edits       Store one cell edit
    DELETE /api/sheet/edits       Discard edits for a record
    POST   /api/sheet/commit      Commit the pending buffer (admin)

  Reconciliation:
    POST   /api/recon/runs        Run an upload against the ledger (admin)
    POST   /api/recon/mappings/{insurer}/invalidate  (superadmin)

  Admin:
    POST   /api/admin/seed        Load demo ledger + mappings (superadmin)

SESSIONS:
  One Session per X-Session-ID header value ("default" when absent),
  created lazily. Each session is a single logical consumer; the engine
  serializes its own mutations.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, empty commits
  - 404: Unknown record / unknown insurer
  - 409: Version conflicts
  - 502: Transport failures toward the record source (retryable)

SEE ALSO:
  - dto.go: Request/response data structures
  - rolegate.go: Role checks
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
	"github.com/HeshMedia/insurezeal-sub006/store/sqlite"
)

// SessionHeader selects the caller's editing session.
const SessionHeader = "X-Session-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Runner *recon.Runner
	Logger *zap.Logger

	PageSize int

	mu       sync.Mutex
	sessions map[string]*mastersheet.Session
}

// NewHandler creates a handler over the given store and runner.
func NewHandler(store *sqlite.Store, runner *recon.Runner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Runner:   runner,
		Logger:   logger,
		PageSize: sqlite.DefaultPageSize,
		sessions: make(map[string]*mastersheet.Session),
	}
}

// session returns the caller's session, creating it on first use.
func (h *Handler) session(r *http.Request) (*mastersheet.Session, error) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = "default"
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s, nil
	}
	s, err := mastersheet.NewSession(r.Context(), h.Store, h.Store,
		mastersheet.Query{Limit: h.PageSize}, h.Logger.With(zap.String("session", id)))
	if err != nil {
		return nil, err
	}
	h.sessions[id] = s
	return s, nil
}

// =============================================================================
// SHEET ENDPOINTS
// =============================================================================

// ListFields returns the declared field schema.
// GET /api/sheet/fields
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	schema := s.Schema()
	dtos := make([]FieldDTO, 0, len(schema))
	for f, t := range schema {
		dtos = append(dtos, FieldDTO{ID: string(f), Type: string(t)})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].ID < dtos[j].ID })
	writeJSON(w, http.StatusOK, dtos)
}

// LoadNextPage fetches and merges the next ledger page into the session.
// POST /api/sheet/pages
func (h *Handler) LoadNextPage(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	before := len(s.Records())
	if _, err := s.LoadNextPage(r.Context()); err != nil {
		writeDomainError(w, "Failed to load page", err)
		return
	}
	records := s.Records()
	writeJSON(w, http.StatusOK, PageResponse{
		Loaded:    len(records) - before,
		Total:     len(records),
		Exhausted: s.Exhausted(),
	})
}

// ListRecords returns every merged record with pending edits overlaid.
// GET /api/sheet/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	records := s.EffectiveAll()
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecord returns one effective record.
// GET /api/sheet/records/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	rec, err := s.Effective(mastersheet.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// ListPending returns the pending edit buffer and its size.
// GET /api/sheet/edits
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	edits := s.PendingEdits()
	resp := PendingResponse{Count: len(edits), Edits: make([]PendingEditDTO, 0, len(edits))}
	for _, e := range edits {
		resp.Edits = append(resp.Edits, PendingEditDTO{
			RecordID: string(e.RecordID),
			FieldID:  string(e.FieldID),
			Value:    string(e.Value),
			EditedAt: e.EditedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetEdit stores one cell edit.
// POST /api/sheet/edits
func (h *Handler) SetEdit(w http.ResponseWriter, r *http.Request) {
	var req SetEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RecordID == "" || req.FieldID == "" {
		writeError(w, http.StatusBadRequest, "record_id and field_id are required", nil)
		return
	}
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	err = s.SetEdit(mastersheet.RecordID(req.RecordID), mastersheet.FieldID(req.FieldID), mastersheet.Value(req.Value))
	if err != nil {
		writeDomainError(w, "Edit rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": s.PendingCount()})
}

// DiscardEdits drops pending edits for a record.
// DELETE /api/sheet/edits
func (h *Handler) DiscardEdits(w http.ResponseWriter, r *http.Request) {
	var req DiscardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RecordID == "" {
		writeError(w, http.StatusBadRequest, "record_id is required", nil)
		return
	}
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	fields := make([]mastersheet.FieldID, 0, len(req.FieldIDs))
	for _, f := range req.FieldIDs {
		fields = append(fields, mastersheet.FieldID(f))
	}
	s.Discard(mastersheet.RecordID(req.RecordID), fields...)
	writeJSON(w, http.StatusOK, map[string]int{"pending": s.PendingCount()})
}

// Commit submits the pending buffer as one batched update.
// POST /api/sheet/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeDomainError(w, "Failed to open session", err)
		return
	}
	res, err := s.Commit(r.Context())
	if err != nil {
		writeDomainError(w, "Commit failed", err)
		return
	}
	status := http.StatusOK
	if len(res.Rejected) > 0 {
		// Partial success; committed records stand, rejected ones keep
		// their pending edits.
		status = http.StatusConflict
	}
	writeJSON(w, status, toCommitResponse(res, s.PendingCount()))
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// RunReconciliation compares an uploaded file against the master ledger.
// POST /api/recon/runs
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Insurer == "" || req.FileRef == "" {
		writeError(w, http.StatusBadRequest, "insurer and file_ref are required", nil)
		return
	}

	master, err := h.Store.AllRecords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load master ledger", err)
		return
	}
	run, err := h.Runner.Run(r.Context(), req.Insurer, req.FileRef, master)
	if err != nil {
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RunDTO{
		ID:          run.ID.String(),
		Insurer:     run.Insurer,
		FileRef:     run.FileRef,
		StartedAt:   run.StartedAt.Format(time.RFC3339Nano),
		CompletedAt: run.CompletedAt.Format(time.RFC3339Nano),
		Report:      run.Report,
	})
}

// InvalidateMapping drops the cached mapping for an insurer.
// POST /api/recon/mappings/{insurer}/invalidate
func (h *Handler) InvalidateMapping(w http.ResponseWriter, r *http.Request) {
	insurer := chi.URLParam(r, "insurer")
	if insurer == "" {
		writeError(w, http.StatusBadRequest, "insurer is required", nil)
		return
	}
	h.Runner.Invalidate(insurer)
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": insurer})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mastersheet.ErrValidation),
		errors.Is(err, mastersheet.ErrEmptyCommit),
		errors.Is(err, mastersheet.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, mastersheet.ErrUnknownRecord),
		errors.Is(err, recon.ErrUnknownInsurer):
		status = http.StatusNotFound
	case errors.Is(err, mastersheet.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, mastersheet.ErrTransport):
		status = http.StatusBadGateway
	}
	writeError(w, status, message, err)
}
