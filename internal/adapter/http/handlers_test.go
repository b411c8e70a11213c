package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	adapthttp "focusblock/internal/adapter/http"
	"focusblock/internal/adapter/memory"
	"focusblock/internal/app"
	"focusblock/internal/domain"
)

var testSecret = []byte("handler-test-secret")

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type harness struct {
	handler http.Handler
	auth    *app.AuthService
	db      *memory.DB
	sink    *captureSink
}

type captureSink struct{ entries []domain.ActivityEntry }

func (c *captureSink) Record(e domain.ActivityEntry) { c.entries = append(c.entries, e) }

type fixedStats struct{}

func (fixedStats) Stats() app.RecorderStats {
	return app.RecorderStats{Accepted: 3, Written: 2, Dropped: 1}
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newHarness(t *testing.T, opts ...adapthttp.Option) *harness {
	t.Helper()
	db := memory.New()
	sink := &captureSink{}
	auth := app.NewAuthService(testSecret, app.WithAdminGroup("admins"))
	srv := adapthttp.New(
		app.NewSessionService(db, sink),
		app.NewActivityService(db),
		app.NewStatsService(db),
		auth,
		opts...,
	)
	return &harness{handler: srv.Handler(), auth: auth, db: db, sink: sink}
}

func (h *harness) token(t *testing.T, user string, role domain.Role) string {
	t.Helper()
	tok, err := h.auth.IssueToken(user, role)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

type response struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *app.Pagination `json:"pagination"`
	Error      *struct {
		Message string           `json:"message"`
		Errors  []app.FieldError `json:"errors"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil && w.Code != http.StatusNoContent {
		t.Fatalf("decode %s %s: %v (body %q)", method, path, err, w.Body.String())
	}
	return w, resp
}

func decodeSession(t *testing.T, raw json.RawMessage) domain.FocusSession {
	t.Helper()
	var s domain.FocusSession
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

func (h *harness) createSession(t *testing.T, token string) domain.FocusSession {
	t.Helper()
	w, resp := h.do(t, http.MethodPost, "/api/sessions", token, map[string]any{"title": "Deep work", "duration": 25})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeSession(t, resp.Data)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	h := newHarness(t, adapthttp.WithRecorderStats(fixedStats{}))

	w, resp := h.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !resp.Success || resp.Message != "Server is running" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	var data struct {
		Activity app.RecorderStats `json:"activity"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Activity.Dropped != 1 {
		t.Errorf("expected recorder stats in health, got %+v", data.Activity)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_StoreCheck(t *testing.T) {
	h := newHarness(t, adapthttp.WithStoreCheck(memory.New()))
	if w, _ := h.do(t, http.MethodGet, "/api/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("reachable store: expected 200, got %d", w.Code)
	}

	h = newHarness(t, adapthttp.WithStoreCheck(downStore{}), adapthttp.WithRecorderStats(fixedStats{}))
	w, resp := h.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if resp.Success || resp.Error == nil || resp.Error.Message != "Database unavailable" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("store error leaked: %s", w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		token string
		msg   string
	}{
		{"missing", "", "No token, authorization denied"},
		{"garbage", "abc.def.ghi", "Token is not valid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, resp := h.do(t, http.MethodGet, "/api/sessions", tc.token, nil)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			if resp.Success || resp.Error == nil || resp.Error.Message != tc.msg {
				t.Errorf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestForwardAuth(t *testing.T) {
	h := newHarness(t, adapthttp.WithForwardAuth(true))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Remote-User", "carol")
	req.Header.Set("Remote-Groups", "admins")
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Ignored unless trusted
	h = newHarness(t)
	w = httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without forward auth, got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "alice", domain.RoleUser)

	sess := h.createSession(t, tok)
	if sess.Status != domain.StatusCreated || sess.Owner != "alice" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	w, resp := h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/start", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Message != "Session started successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if got := decodeSession(t, resp.Data); got.Status != domain.StatusActive || got.ActualStart == nil {
		t.Errorf("expected ACTIVE with actualStart, got %+v", got)
	}

	w, _ = h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/start", tok, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", w.Code)
	}

	w, resp = h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/complete", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", w.Code)
	}
	if got := decodeSession(t, resp.Data); got.Status != domain.StatusCompleted || got.ActualEnd == nil {
		t.Errorf("expected COMPLETED with actualEnd, got %+v", got)
	}

	w, resp = h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/cancel", tok, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cancel completed: expected 400, got %d", w.Code)
	}
	if resp.Error.Message != "Cannot cancel a completed session" {
		t.Errorf("unexpected error %q", resp.Error.Message)
	}

	w, _ = h.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, tok, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("delete completed: expected 400, got %d", w.Code)
	}

	if len(h.sink.entries) != 3 {
		t.Errorf("expected 3 activity entries, got %d", len(h.sink.entries))
	}
}

func TestScheduleCancelDelete(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "alice", domain.RoleUser)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w, resp := h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{
		"title": "Planning", "duration": 30, "scheduledStart": future,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	sess := decodeSession(t, resp.Data)
	if sess.Status != domain.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", sess.Status)
	}

	later := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	w, resp = h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/schedule", tok, map[string]any{"scheduledStart": later})
	if w.Code != http.StatusOK || resp.Message != "Session scheduled successfully" {
		t.Fatalf("reschedule: %d %s", w.Code, w.Body.String())
	}

	w, _ = h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/cancel", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}

	w, resp = h.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, tok, nil)
	if w.Code != http.StatusOK || resp.Message != "Session deleted successfully" {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}

	w, resp = h.do(t, http.MethodGet, "/api/sessions/"+sess.ID, tok, nil)
	if w.Code != http.StatusNotFound || resp.Error.Message != "FocusSession not found" {
		t.Errorf("get deleted: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "alice", domain.RoleUser)

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	w, resp := h.do(t, http.MethodPost, "/api/sessions", tok, map[string]any{
		"title": "", "duration": 0, "scheduledStart": past,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(resp.Error.Errors) != 3 {
		t.Errorf("expected 3 field errors, got %+v", resp.Error.Errors)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestOwnershipAndAdmin(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", domain.RoleUser)
	bob := h.token(t, "bob", domain.RoleUser)
	root := h.token(t, "root", domain.RoleAdmin)

	sess := h.createSession(t, alice)
	h.createSession(t, bob)

	w, resp := h.do(t, http.MethodGet, "/api/sessions/"+sess.ID, bob, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if resp.Error.Message != "Forbidden - Insufficient permissions" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}

	w, _ = h.do(t, http.MethodGet, "/api/sessions/"+sess.ID, root, nil)
	if w.Code != http.StatusOK {
		t.Errorf("admin get: expected 200, got %d", w.Code)
	}

	_, resp = h.do(t, http.MethodGet, "/api/sessions?userId=alice", bob, nil)
	if resp.Pagination == nil || resp.Pagination.Total != 1 {
		t.Fatalf("expected bob to see only his session, got %+v", resp.Pagination)
	}
	var list []domain.FocusSession
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list[0].Owner != "bob" {
		t.Errorf("bob saw %s's session", list[0].Owner)
	}

	_, resp = h.do(t, http.MethodGet, "/api/sessions?userId=alice", root, nil)
	if resp.Pagination.Total != 1 {
		t.Errorf("admin filter: expected 1, got %d", resp.Pagination.Total)
	}
	_, resp = h.do(t, http.MethodGet, "/api/sessions", root, nil)
	if resp.Pagination.Total != 2 {
		t.Errorf("admin list: expected 2, got %d", resp.Pagination.Total)
	}
}

func TestListQueryValidation(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "alice", domain.RoleUser)

	for _, path := range []string{
		"/api/sessions?page=abc",
		"/api/sessions?limit=0x10",
		"/api/sessions?limit=101",
		"/api/sessions?page=0",
		"/api/sessions?limit=0",
		"/api/sessions?page=",
		"/api/sessions?page=9223372036854775807",
		"/api/activity?page=0",
		"/api/activity?limit=0",
		"/api/stats?days=0",
		"/api/sessions?status=PAUSED",
		"/api/activity?action=NOPE",
		"/api/stats?days=400",
	} {
		w, _ := h.do(t, http.MethodGet, path, tok, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}

	w, resp := h.do(t, http.MethodGet, "/api/sessions", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if string(resp.Data) != "[]" {
		t.Errorf("expected empty array, got %s", resp.Data)
	}
}

func TestStatsEndpoints(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "alice", domain.RoleUser)

	w, _ := h.do(t, http.MethodPost, "/api/stats/blocked", tok, map[string]any{"url": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank url: expected 400, got %d", w.Code)
	}

	h.do(t, http.MethodPost, "/api/stats/blocked", tok, map[string]any{"url": "a.example"})
	w, resp := h.do(t, http.MethodPost, "/api/stats/blocked", tok, map[string]any{"url": "a.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("record: expected 200, got %d", w.Code)
	}
	var st domain.DailyStats
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.BlockedAttempts != 2 || len(st.SitesBlocked) != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}

	_, resp = h.do(t, http.MethodGet, "/api/stats?days=1", tok, nil)
	var rows []domain.DailyStats
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row, got %+v", rows)
	}
}

func TestActivityEndpoint(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice", domain.RoleUser)
	ctx := context.Background()
	now := time.Now().UTC()
	h.db.AppendActivity(ctx, domain.ActivityEntry{ID: "1", User: "alice", Action: domain.ActionCreateSession, Timestamp: now})
	h.db.AppendActivity(ctx, domain.ActivityEntry{ID: "2", User: "bob", Action: domain.ActionCreateSession, Timestamp: now})

	w, resp := h.do(t, http.MethodGet, "/api/activity?userId=bob", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Pagination.Total != 1 {
		t.Errorf("expected only alice's entry, got %d", resp.Pagination.Total)
	}
}

type failingSessions struct {
	*memory.DB
}

func (failingSessions) ListSessions(context.Context, domain.SessionFilter, int, int) ([]domain.FocusSession, error) {
	return nil, errors.New("connection reset by peer")
}

func TestInternalErrorMasking(t *testing.T) {
	for _, production := range []bool{false, true} {
		db := memory.New()
		auth := app.NewAuthService(testSecret)
		srv := adapthttp.New(
			app.NewSessionService(failingSessions{db}, nil),
			app.NewActivityService(db),
			app.NewStatsService(db),
			auth,
			adapthttp.WithProduction(production),
		)
		tok, _ := auth.IssueToken("alice", domain.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		body := w.Body.String()
		leaked := bytes.Contains([]byte(body), []byte("connection reset"))
		if production && leaked {
			t.Errorf("production response leaked internals: %s", body)
		}
		if !production && !leaked {
			t.Errorf("development response hid the error: %s", body)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	w, resp := h.do(t, http.MethodGet, "/api/nope", "", nil)
	if w.Code != http.StatusNotFound || resp.Success {
		t.Errorf("expected 404 envelope, got %d %s", w.Code, w.Body.String())
	}
}
