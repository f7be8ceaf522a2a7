package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// liteEnv points configuration at a throwaway SQLite data directory.
func liteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("RECIPESITE_CONFIG", "")
	t.Setenv("IMAGE_STORAGE_TYPE", "fs")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"recipesite"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Help(t *testing.T) {
	code, out, _ := run(t, "help")
	if code != 0 {
		t.Fatalf("help exit = %d", code)
	}
	for _, cmd := range []string{"serve", "list", "show", "save", "delete", "hash-passphrase"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("usage missing %q", cmd)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := run(t, "bake")
	if code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut, "Unknown command: bake") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_DefaultsToServer(t *testing.T) {
	orig := startServer
	defer func() { startServer = orig }()

	calls := 0
	startServer = func(io.Writer, io.Writer) int {
		calls++
		return 0
	}

	run(t)
	run(t, "serve")
	run(t, "--port=9000")
	if calls != 3 {
		t.Errorf("server started %d times, want 3", calls)
	}
}

func TestRun_HashPassphrase(t *testing.T) {
	code, out, _ := run(t, "hash-passphrase", "--passphrase", "daizu")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "$2a$") {
		t.Errorf("expected a bcrypt hash, got %q", out)
	}

	if code, _, _ := run(t, "hash-passphrase"); code != 2 {
		t.Errorf("missing passphrase exit = %d, want 2", code)
	}
}

func TestRun_CatalogLifecycle(t *testing.T) {
	dir := liteEnv(t)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := os.WriteFile(filepath.Join(dir, "s1.png"), png, 0600); err != nil {
		t.Fatal(err)
	}
	draft := `name: ひじきの煮物
category: 海藻
keywords: 常備菜, 簡単
soak_time: 30分
steps:
  - description: 水で戻す
    image_file: s1.png
  - description: ""
  - description: 炒めて煮る
`
	draftPath := filepath.Join(dir, "hijiki.yaml")
	if err := os.WriteFile(draftPath, []byte(draft), 0600); err != nil {
		t.Fatal(err)
	}

	// 1. Create
	code, out, errOut := run(t, "save", "--file", draftPath, "--json")
	if code != 0 {
		t.Fatalf("save exit = %d: %s", code, errOut)
	}
	var saved struct {
		Recipe struct {
			ID       int64    `json:"id"`
			Keywords []string `json:"keywords"`
		} `json:"recipe"`
		Steps []struct {
			StepNumber int     `json:"step_number"`
			ImageURL   *string `json:"image_url"`
		} `json:"steps"`
		Created bool `json:"created"`
	}
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("decode save output: %v\n%s", err, out)
	}
	if !saved.Created || saved.Recipe.ID == 0 {
		t.Fatalf("unexpected save result: %+v", saved)
	}
	if len(saved.Steps) != 2 || saved.Steps[1].StepNumber != 2 {
		t.Errorf("steps = %+v, want two numbered steps", saved.Steps)
	}
	if saved.Steps[0].ImageURL == nil || !strings.HasPrefix(*saved.Steps[0].ImageURL, "/images/") {
		t.Errorf("step image not uploaded: %+v", saved.Steps[0].ImageURL)
	}
	id := strconv.FormatInt(saved.Recipe.ID, 10)

	// 2. List and search
	code, out, _ = run(t, "list", "--q", "ひじき")
	if code != 0 || !strings.Contains(out, "ひじきの煮物") {
		t.Errorf("list exit = %d, out = %q", code, out)
	}
	code, out, _ = run(t, "list", "--q", "黒豆")
	if code != 0 || strings.Contains(out, "ひじき") {
		t.Errorf("search should not match, got %q", out)
	}

	// 3. Show
	code, out, _ = run(t, "show", "--id", id)
	if code != 0 {
		t.Fatalf("show exit = %d", code)
	}
	for _, want := range []string{"常備菜, 簡単", "30分", "1. 水で戻す", "2. 炒めて煮る"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	// 4. Delete needs confirmation
	code, _, errOut = run(t, "delete", "--id", id)
	if code != 1 || !strings.Contains(errOut, "--yes") {
		t.Errorf("unconfirmed delete exit = %d, stderr = %q", code, errOut)
	}
	if code, _, _ = run(t, "delete", "--id", id, "--yes"); code != 0 {
		t.Fatalf("delete exit = %d", code)
	}
	if code, _, _ = run(t, "show", "--id", id); code != 1 {
		t.Errorf("show after delete exit = %d, want 1", code)
	}
}

func TestRun_SaveUpdatesExisting(t *testing.T) {
	dir := liteEnv(t)

	path := filepath.Join(dir, "kuromame.yaml")
	write := func(body string) {
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}

	write("name: 黒豆\nsteps:\n  - description: 洗う\n  - description: 煮る\n")
	if code, _, errOut := run(t, "save", "--file", path); code != 0 {
		t.Fatalf("create exit = %d: %s", code, errOut)
	}

	write("name: 黒豆\ncategory: おせち食材\nsteps:\n  - description: 煮含める\n")
	code, out, errOut := run(t, "save", "--file", path, "--id", "1")
	if code != 0 {
		t.Fatalf("update exit = %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Updated recipe #1") || !strings.Contains(out, "(1 steps)") {
		t.Errorf("out = %q", out)
	}
}

func TestRun_SaveRejectsInvalidDraft(t *testing.T) {
	dir := liteEnv(t)

	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("name: x\ncategory: 麺類\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := run(t, "save", "--file", path); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if code, _, _ := run(t, "save"); code != 2 {
		t.Errorf("missing --file exit = %d, want 2", code)
	}
}

func TestRun_Migrate(t *testing.T) {
	dir := liteEnv(t)
	code, out, _ := run(t, "migrate")
	if code != 0 || !strings.Contains(out, filepath.Join(dir, "recipes.db")) {
		t.Errorf("migrate exit = %d, out = %q", code, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "recipes.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestRun_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if code, out, _ := run(t, "health", "--url", srv.URL+"/health"); code != 0 || strings.TrimSpace(out) != "OK" {
		t.Errorf("healthy exit = %d, out = %q", code, out)
	}
	if code, _, _ := run(t, "health", "--url", srv.URL+"/missing"); code != 1 {
		t.Errorf("unhealthy exit = %d, want 1", code)
	}
}
