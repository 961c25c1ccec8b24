package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/pipelineservice"
	"github.com/starford/agevault/internal/testutil"
)

type keyFlag bool

func (k keyFlag) Exists() bool { return bool(k) }

// testEnv sets up temp pipeline folders, a journal, a service and a router.
// An empty token means auth is disabled.
func testEnv(t *testing.T, authToken string) (models.Layout, http.Handler) {
	t.Helper()
	layout, store := testutil.TestLayout(t)
	db := testutil.TestJournal(t)
	_ = db.Record(models.Outcome{TickID: "t1", Op: models.OpEncrypt, Source: "notes.txt", Output: "notes.txt.age", Status: models.StatusOK})

	svc := pipelineservice.NewService(store, layout, keyFlag(true), pipelineservice.WithLedger(db))
	return layout, NewRouter(svc, authToken != "", authToken, nil)
}

func do(t *testing.T, h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	layout, router := testEnv(t, "")
	testutil.WriteFile(t, layout.Encrypt, "queued.txt", []byte("abc"))

	w := do(t, router, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var st pipelineservice.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.KeyPresent || len(st.Stages) != 4 {
		t.Errorf("status = %+v", st)
	}
	for _, ss := range st.Stages {
		if ss.Stage == models.StageEncryptQueue && ss.Files != 1 {
			t.Errorf("encrypt files = %d, want 1", ss.Files)
		}
	}
	if st.Outcomes[models.StatusOK] != 1 {
		t.Errorf("outcomes = %+v", st.Outcomes)
	}
}

func TestListStage(t *testing.T) {
	layout, router := testEnv(t, "")
	testutil.WriteFile(t, layout.Vault, "a.txt.age", []byte("x"))

	w := do(t, router, http.MethodGet, "/stages/vault", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StageListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stage != models.StageVault || len(resp.Files) != 1 || resp.Files[0].Name != "a.txt.age" {
		t.Errorf("response = %+v", resp)
	}
}

func TestListStage_Unknown(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/stages/attic", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHistory(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/history?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Source != "notes.txt" {
		t.Errorf("entries = %+v", resp.Entries)
	}
}

func TestHistory_BadLimit(t *testing.T) {
	_, router := testEnv(t, "")
	for _, q := range []string{"abc", "-1"} {
		w := do(t, router, http.MethodGet, "/history?limit="+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestAuth_TokenRequired(t *testing.T) {
	_, router := testEnv(t, "s3cret")

	if w := do(t, router, http.MethodGet, "/status", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/status", map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/status", map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Errorf("right token: status = %d, want 200", w.Code)
	}
}

func TestAuth_ChallengeHeader(t *testing.T) {
	_, router := testEnv(t, "s3cret")
	w := do(t, router, http.MethodGet, "/history", nil)
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("401 should carry a WWW-Authenticate challenge")
	}
}

func TestEventsRoute(t *testing.T) {
	layout, store := testutil.TestLayout(t)
	svc := pipelineservice.NewService(store, layout, keyFlag(true))
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewRouter(svc, false, "", events)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusTeapot {
		t.Errorf("events status = %d, want handler's 418", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/status", nil); w.Header().Get("Cache-Control") == "" {
		t.Error("status responses should not be cacheable")
	}
}
