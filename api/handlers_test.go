package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeshMedia/insurezeal-sub006/api"
	"github.com/HeshMedia/insurezeal-sub006/recon"
	"github.com/HeshMedia/insurezeal-sub006/store/sqlite"
	"github.com/HeshMedia/insurezeal-sub006/upload"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type env struct {
	router    http.Handler
	store     *sqlite.Store
	uploadDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	runner := recon.NewRunner(recon.NewResolver(store), upload.NewCSVSource(dir), nil)
	h := api.NewHandler(store, runner, nil)
	return &env{router: api.NewRouter(h), store: store, uploadDir: dir}
}

// do issues one request with the given role and optional JSON body.
func (e *env) do(t *testing.T, method, path string, role api.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(api.RoleHeader, string(role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/admin/seed", api.RoleSuperadmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// =============================================================================
// ROLE GATING
// =============================================================================

func TestAPI_RoleGate(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	// GIVEN no role at all
	w := e.do(t, http.MethodGet, "/api/sheet/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// GIVEN a made-up role
	w = e.do(t, http.MethodGet, "/api/sheet/records", api.Role("auditor"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// GIVEN an agent attempting privileged commands
	w = e.do(t, http.MethodPost, "/api/sheet/commit", api.RoleAgent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodPost, "/api/recon/runs", api.RoleAgent, api.RunRequest{Insurer: "Acme General", FileRef: "x.csv"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// GIVEN an admin attempting superadmin commands
	w = e.do(t, http.MethodPost, "/api/recon/mappings/Acme/invalidate", api.RoleAdmin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodPost, "/api/admin/seed", api.RoleAdmin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// THEN reads are open to any recognized role
	w = e.do(t, http.MethodGet, "/api/sheet/fields", api.RoleAgent, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// SHEET FLOW
// =============================================================================

func TestAPI_EditAndCommitFlow(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	// WHEN loading the first page
	w := e.do(t, http.MethodPost, "/api/sheet/pages", api.RoleAgent, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[api.PageResponse](t, w)
	assert.Equal(t, 8, page.Loaded)
	assert.Equal(t, 8, page.Total)
	assert.True(t, page.Exhausted)

	// AND storing one edit
	w = e.do(t, http.MethodPost, "/api/sheet/edits", api.RoleAgent,
		api.SetEditRequest{RecordID: "rec-P100", FieldID: "premium", Value: "1200"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// THEN the effective record shows the pending value
	w = e.do(t, http.MethodGet, "/api/sheet/records/rec-P100", api.RoleAgent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[api.RecordDTO](t, w)
	assert.Equal(t, "1200", rec.Fields["premium"])
	assert.Equal(t, int64(1), rec.Version)

	// AND the buffer reports it
	w = e.do(t, http.MethodGet, "/api/sheet/edits", api.RoleAgent, nil)
	pending := decode[api.PendingResponse](t, w)
	assert.Equal(t, 1, pending.Count)

	// WHEN an admin commits
	w = e.do(t, http.MethodPost, "/api/sheet/commit", api.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	commit := decode[api.CommitResponse](t, w)
	assert.Equal(t, int64(2), commit.Committed["rec-P100"])
	assert.Empty(t, commit.Rejected)
	assert.Equal(t, 0, commit.Remaining)

	// THEN the store holds the committed value
	w = e.do(t, http.MethodGet, "/api/sheet/records/rec-P100", api.RoleAgent, nil)
	rec = decode[api.RecordDTO](t, w)
	assert.Equal(t, "1200", rec.Fields["premium"])
	assert.Equal(t, int64(2), rec.Version)
}

func TestAPI_SetEdit_InvalidValueRejected(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodPost, "/api/sheet/pages", api.RoleAgent, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// a number field refuses text
	w = e.do(t, http.MethodPost, "/api/sheet/edits", api.RoleAgent,
		api.SetEditRequest{RecordID: "rec-P100", FieldID: "premium", Value: "a lot"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// an unloaded record id is 404
	w = e.do(t, http.MethodPost, "/api/sheet/edits", api.RoleAgent,
		api.SetEditRequest{RecordID: "rec-missing", FieldID: "premium", Value: "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Commit_EmptyBufferRejected(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodPost, "/api/sheet/commit", api.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_DiscardEdits(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodPost, "/api/sheet/pages", api.RoleAgent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/api/sheet/edits", api.RoleAgent,
		api.SetEditRequest{RecordID: "rec-P100", FieldID: "premium", Value: "1200"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, "/api/sheet/edits", api.RoleAgent,
		api.DiscardRequest{RecordID: "rec-P100"})
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[map[string]int](t, w)
	assert.Equal(t, 0, counts["pending"])
}

func TestAPI_SessionsAreIndependent(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	load := httptest.NewRequest(http.MethodPost, "/api/sheet/pages", nil)
	load.Header.Set(api.RoleHeader, string(api.RoleAgent))
	load.Header.Set(api.SessionHeader, "alice")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, load)
	require.Equal(t, http.StatusOK, w.Code)

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(
		api.SetEditRequest{RecordID: "rec-P100", FieldID: "premium", Value: "1200"}))
	edit := httptest.NewRequest(http.MethodPost, "/api/sheet/edits", &body)
	edit.Header.Set(api.RoleHeader, string(api.RoleAgent))
	edit.Header.Set(api.SessionHeader, "alice")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, edit)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the default session sees no pending edits
	other := e.do(t, http.MethodGet, "/api/sheet/edits", api.RoleAgent, nil)
	pending := decode[api.PendingResponse](t, other)
	assert.Equal(t, 0, pending.Count)
}

// =============================================================================
// RECONCILIATION FLOW
// =============================================================================

func TestAPI_ReconciliationRun(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	// GIVEN an Acme upload: P100 matches after normalization, P101 varies
	csvDoc := "Policy No,Premium Amount,Inception\n" +
		"P100,\"1,000.00\",15/01/2026\n" +
		"P101,9999,01/02/2026\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.uploadDir, "acme_jan.csv"), []byte(csvDoc), 0o644))

	w := e.do(t, http.MethodPost, "/api/recon/runs", api.RoleAdmin,
		api.RunRequest{Insurer: "Acme General", FileRef: "acme_jan.csv"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	run := decode[api.RunDTO](t, w)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "Acme General", run.Insurer)
	assert.Equal(t, 2, run.Report.Summary.TotalCompared)
	assert.Equal(t, 1, run.Report.Summary.ExactMatches)
	assert.Equal(t, 1, run.Report.Summary.VariantRecords)
	require.Len(t, run.Report.Variances, 1)
	assert.Equal(t, "P101", run.Report.Variances[0].PolicyKey)
}

func TestAPI_ReconciliationRun_UnknownInsurer(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodPost, "/api/recon/runs", api.RoleAdmin,
		api.RunRequest{Insurer: "Nonexistent Mutual", FileRef: "x.csv"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_InvalidateMapping(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodPost, "/api/recon/mappings/Acme%20General/invalidate", api.RoleSuperadmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[map[string]string](t, w)
	assert.Equal(t, "Acme General", out["invalidated"])
}
