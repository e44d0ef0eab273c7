package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aetracker/internal/store"
	"aetracker/internal/web"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// newBackend serves a fresh SQLite store and points the CLI at it through an
// isolated config dir.
func newBackend(t *testing.T) string {
	t.Helper()
	t.Setenv("AETRACKER_CONFIG_DIR", t.TempDir())
	t.Setenv("AETRACKER_FORMAT", "")
	t.Setenv("AETRACKER_LOG_LEVEL", "error")

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s, err := web.NewServer(web.ServerConfig{Addr: "127.0.0.1:0"}, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := srv.URL + "/api"
	t.Setenv("AETRACKER_URL", url)
	return url
}

func mustRunJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("aetracker %v: %v\nstderr:\n%s", args, err, stderr)
	}
	var out map[string]any
	if err := json.Unmarshal(stdout, &out); err != nil {
		t.Fatalf("unmarshal stdout: %v\nstdout:\n%s", err, stdout)
	}
	return out
}

func TestTasksLifecycle(t *testing.T) {
	newBackend(t)

	created := mustRunJSON(t, "tasks", "create", "--title", "Send renewal quote", "--ae", "Ava Smith", "--account", "Acme", "--due", "2099-01-02")
	id, _ := created["id"].(string)
	if id == "" || created["ae"] != "Ava Smith" || created["account"] != "Acme" || created["status"] != "BACKLOG" {
		t.Fatalf("created = %#v", created)
	}

	list := mustRunJSON(t, "tasks", "list")
	active, _ := list["active"].([]any)
	if len(active) != 1 {
		t.Fatalf("active = %#v", list["active"])
	}

	done := mustRunJSON(t, "tasks", "done", id)
	if done["status"] != "DONE" || done["completedAt"] == nil {
		t.Fatalf("done = %#v", done)
	}
	list = mustRunJSON(t, "tasks", "list", "--status", "done")
	if completed, _ := list["completed"].([]any); len(completed) != 1 {
		t.Fatalf("completed = %#v", list["completed"])
	}

	reopened := mustRunJSON(t, "tasks", "reopen", id, "--status", "in-progress")
	if reopened["status"] != "IN_PROGRESS" || reopened["completedAt"] != nil {
		t.Fatalf("reopened = %#v", reopened)
	}

	updated := mustRunJSON(t, "tasks", "update", id, "--account", "", "--title", "Renewal quote v2")
	if updated["title"] != "Renewal quote v2" || updated["account"] != "" || updated["dueDate"] != "2099-01-02" {
		t.Fatalf("updated = %#v", updated)
	}

	shown := mustRunJSON(t, "tasks", "show", id)
	if shown["id"] != id {
		t.Fatalf("shown = %#v", shown)
	}

	if got := mustRunJSON(t, "tasks", "delete", id); got["deleted"] != true {
		t.Fatalf("delete = %#v", got)
	}
}

func TestTasksMissingTaskIsBenign(t *testing.T) {
	newBackend(t)
	const missing = "00000000-0000-4000-8000-000000000000"

	stdout, stderr, err := runCLI(t, []string{"tasks", "update", missing, "--title", "x"})
	if err != nil {
		t.Fatalf("update: %v\n%s", err, stderr)
	}
	if strings.TrimSpace(string(stdout)) != "null" {
		t.Fatalf("update stdout = %q", stdout)
	}

	if got := mustRunJSON(t, "tasks", "delete", missing); got["deleted"] != false {
		t.Fatalf("delete = %#v", got)
	}

	if _, _, err := runCLI(t, []string{"tasks", "show", missing}); err == nil {
		t.Fatalf("show of a missing task should fail")
	}
}

func TestTasksCreateValidation(t *testing.T) {
	newBackend(t)
	cases := [][]string{
		{"tasks", "create", "--ae", "Ava"},
		{"tasks", "create", "--title", "x"},
		{"tasks", "create", "--title", "x", "--ae", "Ava", "--due", "03/15/2024"},
		{"tasks", "create", "--title", "x", "--ae", "Ava", "--status", "someday"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, args); err == nil {
			t.Fatalf("aetracker %v: expected error", args)
		}
	}
	list := mustRunJSON(t, "tasks", "list")
	if active, _ := list["active"].([]any); len(active) != 0 {
		t.Fatalf("validation failures must not create tasks: %#v", active)
	}
}

func TestAEsDeleteInUse(t *testing.T) {
	newBackend(t)
	mustRunJSON(t, "tasks", "create", "--title", "Call", "--ae", "Bob")

	_, stderr, err := runCLI(t, []string{"aes", "delete", "bob"})
	if err == nil {
		t.Fatalf("expected in-use error")
	}
	if !strings.Contains(string(stderr), "referenced by 1 task") {
		t.Fatalf("stderr = %q", stderr)
	}

	if got := mustRunJSON(t, "aes", "delete", "Nobody"); got["deleted"] != false {
		t.Fatalf("delete unknown = %#v", got)
	}
}

func TestAEsListAndReconcile(t *testing.T) {
	newBackend(t)
	for _, name := range []string{"zoe", "Ava", "mia"} {
		if _, stderr, err := runCLI(t, []string{"aes", "create", name}); err != nil {
			t.Fatalf("aes create %s: %v\n%s", name, err, stderr)
		}
	}

	stdout, _, err := runCLI(t, []string{"aes", "list"})
	if err != nil {
		t.Fatalf("aes list: %v", err)
	}
	var rows []struct{ Name, Color string }
	if err := json.Unmarshal(stdout, &rows); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if len(rows) != 3 || rows[0].Name != "Ava" || rows[1].Name != "mia" || rows[2].Name != "zoe" {
		t.Fatalf("rows = %#v", rows)
	}

	res := mustRunJSON(t, "aes", "reconcile-colors")
	if res["ok"] != true {
		t.Fatalf("reconcile = %#v", res)
	}
}

func TestAccounts(t *testing.T) {
	newBackend(t)
	mustRunJSON(t, "accounts", "create", "Zeta")
	mustRunJSON(t, "accounts", "create", "acme")
	if _, _, err := runCLI(t, []string{"accounts", "create", "ACME"}); err == nil {
		t.Fatalf("duplicate account should fail")
	}

	stdout, _, err := runCLI(t, []string{"accounts", "list"})
	if err != nil {
		t.Fatalf("accounts list: %v", err)
	}
	if got := strings.TrimSpace(string(stdout)); got != `["acme","Zeta"]` {
		t.Fatalf("accounts = %s", got)
	}
	if got := mustRunJSON(t, "accounts", "delete", "zeta"); got["deleted"] != true {
		t.Fatalf("delete = %#v", got)
	}
}

func TestTableAndEDNFormats(t *testing.T) {
	newBackend(t)
	mustRunJSON(t, "tasks", "create", "--title", "Kickoff", "--ae", "Ava")

	stdout, stderr, err := runCLI(t, []string{"--format", "table", "--no-color", "tasks", "list"})
	if err != nil {
		t.Fatalf("table list: %v\n%s", err, stderr)
	}
	if !strings.Contains(string(stdout), "Active (1)") || !strings.Contains(string(stdout), "Kickoff") {
		t.Fatalf("table output:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, []string{"--format", "edn", "aes", "summary"})
	if err != nil {
		t.Fatalf("edn summary: %v", err)
	}
	if !strings.Contains(string(stdout), `:name "Ava"`) || !strings.Contains(string(stdout), ":open 1") {
		t.Fatalf("edn output: %s", stdout)
	}

	if _, _, err := runCLI(t, []string{"--format", "yaml", "tasks", "list"}); err == nil {
		t.Fatalf("unknown format should fail")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AETRACKER_CONFIG_DIR", dir)
	t.Setenv("AETRACKER_URL", "")
	t.Setenv("AETRACKER_FORMAT", "")

	got := mustRunJSON(t, "config", "init")
	path := filepath.Join(dir, "config.toml")
	if got["path"] != path {
		t.Fatalf("init = %#v", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init"}); err == nil {
		t.Fatalf("second init without --force should fail")
	}

	t.Setenv("AETRACKER_URL", "http://env.test/api")
	shown := mustRunJSON(t, "config", "show")
	client, _ := shown["client"].(map[string]any)
	if client["url"] != "http://env.test/api" || client["timeout"] != "10s" {
		t.Fatalf("client = %#v", client)
	}

	shown = mustRunJSON(t, "--url", "http://flag.test/api", "config", "show")
	client, _ = shown["client"].(map[string]any)
	if client["url"] != "http://flag.test/api" {
		t.Fatalf("flag should win over env: %#v", client)
	}
}

func TestTasksExport(t *testing.T) {
	newBackend(t)
	created := mustRunJSON(t, "tasks", "create", "--title", "Kickoff", "--ae", "Ava", "--description", "agenda")
	id, _ := created["id"].(string)

	dir := t.TempDir()
	res := mustRunJSON(t, "tasks", "export", "--to", dir)
	written, _ := res["written"].([]any)
	if len(written) != 2 {
		t.Fatalf("written = %#v", res["written"])
	}
	b, err := os.ReadFile(filepath.Join(dir, "tasks", id+".md"))
	if err != nil {
		t.Fatalf("task page: %v", err)
	}
	if !strings.Contains(string(b), "# Kickoff") || !strings.Contains(string(b), "agenda") {
		t.Fatalf("page:\n%s", b)
	}
}
