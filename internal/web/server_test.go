package web

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"aetracker/internal/api"
	"aetracker/internal/model"
	"aetracker/internal/store"
)

type testEnv struct {
	srv    *httptest.Server
	client *api.Client
	st     *store.Store
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	s, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	c, err := api.NewClient(api.ClientConfig{BaseURL: srv.URL + "/api", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return testEnv{srv: srv, client: c, st: st}
}

func (e testEnv) raw(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestNewServer_RequiresAddrAndStore(t *testing.T) {
	if _, err := NewServer(ServerConfig{}, nil); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	if err := e.client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	code, body := e.raw(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || !strings.Contains(body, `"ok":true`) {
		t.Fatalf("GET /health = %d %s", code, body)
	}
}

func TestHealth_InstanceIDFailureIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web.db")
	st, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	// The database still answers pings but the meta table is gone.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`DROP TABLE meta`); err != nil {
		t.Fatalf("drop meta: %v", err)
	}

	res, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusServiceUnavailable || strings.Contains(string(b), `"ok":true`) {
		t.Fatalf("GET /health = %d %s", res.StatusCode, b)
	}
}

func TestAEs_CreateConflictDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	ae, err := e.client.CreateAE(ctx, "Ava")
	if err != nil {
		t.Fatalf("CreateAE: %v", err)
	}
	if _, err := e.client.CreateAE(ctx, "AVA"); !api.IsConflict(err) {
		t.Fatalf("expected 409 for duplicate, got %v", err)
	}

	if _, err := e.client.CreateTask(ctx, api.CreateTaskRequest{Title: "T", AEID: ae.ID}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	err = e.client.DeleteAE(ctx, ae.ID)
	if n, ok := api.InUseCount(err); !ok || n != 1 {
		t.Fatalf("expected in-use conflict with count 1, got %v", err)
	}

	bob, _ := e.client.CreateAE(ctx, "Bob")
	if err := e.client.DeleteAE(ctx, bob.ID); err != nil {
		t.Fatalf("DeleteAE: %v", err)
	}
	aes, err := e.client.ListAEs(ctx)
	if err != nil || len(aes) != 1 || aes[0].Name != "Ava" {
		t.Fatalf("ListAEs after delete: %+v %v", aes, err)
	}
}

func TestDelete_RejectsNonUUID(t *testing.T) {
	e := newTestEnv(t)
	code, body := e.raw(t, http.MethodDelete, "/api/accounts?id=nope", "")
	if code != http.StatusBadRequest || !strings.Contains(body, "id must be a UUID") {
		t.Fatalf("DELETE bad id = %d %s", code, body)
	}
}

func TestCreate_InvalidJSON(t *testing.T) {
	e := newTestEnv(t)
	code, body := e.raw(t, http.MethodPost, "/api/aes", "{not json")
	if code != http.StatusBadRequest || !strings.Contains(body, "Invalid JSON") {
		t.Fatalf("POST invalid json = %d %s", code, body)
	}
}

func TestTasks_CreateUpdateDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if _, err := e.client.CreateTask(ctx, api.CreateTaskRequest{Title: "T"}); !api.IsValidation(err) {
		t.Fatalf("expected validation error without ae, got %v", err)
	}

	task, err := e.client.CreateTask(ctx, api.CreateTaskRequest{Title: "T", AE: "Ava", Account: "Acme", Status: model.StatusBacklog})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.AE != "Ava" || task.Account != "Acme" || task.CompletedAt != nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	code, body := e.raw(t, http.MethodPatch, "/api/tasks/"+task.ID, "{}")
	if code != http.StatusBadRequest || !strings.Contains(body, "No fields provided") {
		t.Fatalf("empty PATCH = %d %s", code, body)
	}

	done, err := e.client.UpdateTask(ctx, task.ID, api.UpdateTaskRequest{Status: model.Some(model.StatusDone)})
	if err != nil || done.CompletedAt == nil {
		t.Fatalf("UpdateTask DONE: %+v %v", done, err)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if _, err := e.client.UpdateTask(ctx, missing, api.UpdateTaskRequest{Title: model.Some("x")}); !api.IsNotFound(err) {
		t.Fatalf("expected 404, got %v", err)
	}

	if err := e.client.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := e.client.DeleteTask(ctx, task.ID); !api.IsNotFound(err) {
		t.Fatalf("expected 404 on second delete, got %v", err)
	}
	tasks, err := e.client.ListTasks(ctx)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("ListTasks: %+v %v", tasks, err)
	}
}

func TestReconcileColors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for _, n := range []string{"A", "B"} {
		if _, err := e.client.CreateAE(ctx, n); err != nil {
			t.Fatalf("CreateAE: %v", err)
		}
	}
	res, err := e.client.ReconcileAEColors(ctx)
	if err != nil {
		t.Fatalf("ReconcileAEColors: %v", err)
	}
	if !res.OK || res.Changed != 2 || len(res.Changes) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTaskDescription_RendersSanitizedHTML(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	desc := "Call **Acme** <script>alert(1)</script>"
	task, err := e.client.CreateTask(ctx, api.CreateTaskRequest{Title: "T", AE: "Ava", Description: &desc})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	got, err := e.client.TaskDescription(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskDescription: %v", err)
	}
	if got.Markdown != desc {
		t.Fatalf("markdown = %q", got.Markdown)
	}
	if !strings.Contains(got.HTML, "<strong>Acme</strong>") || strings.Contains(got.HTML, "<script") {
		t.Fatalf("html = %q", got.HTML)
	}
}
