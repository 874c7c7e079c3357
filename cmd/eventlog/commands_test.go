package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/models"
	"github.com/persistorai/eventlog/internal/store"
)

// setupEnv points the CLI at a temp SQLite file and an Event Hub stub that
// rejects events whose uuid starts with "bad".
func setupEnv(t *testing.T) (dbPath string, posts *atomic.Int32) {
	t.Helper()

	posts = &atomic.Int32{}
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if uuid, _ := body["uuid"].(string); strings.HasPrefix(uuid, "bad") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(hub.Close)

	dbPath = filepath.Join(t.TempDir(), "events.db")

	t.Setenv("EVENTLOG_DRIVER", "sqlite")
	t.Setenv("EVENTLOG_CONNECTION", dbPath)
	t.Setenv("EVENTLOG_SINK_ENDPOINT", hub.URL)
	t.Setenv("EVENTLOG_SINK_PATH", "test-hub")
	t.Setenv("EVENTLOG_SINK_PRIMARY_KEY", "dGVzdC1wcmltYXJ5LWtleQ==")
	t.Setenv("LOG_LEVEL", "error")

	return dbPath, posts
}

func seed(t *testing.T, dbPath string, uuids ...string) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	st, err := store.OpenSQLite(dbPath, log)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	for _, u := range uuids {
		if _, err := st.Create(context.Background(), &models.Event{UUID: u}); err != nil {
			t.Fatalf("Create %s: %v", u, err)
		}
	}
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()

	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestCLI_Lifecycle(t *testing.T) {
	dbPath, posts := setupEnv(t)

	mustExecute(t, "schema", "create")

	var status struct {
		Driver  string `json:"driver"`
		Version int64  `json:"version"`
	}
	if err := json.Unmarshal([]byte(mustExecute(t, "schema", "status")), &status); err != nil {
		t.Fatalf("schema status output: %v", err)
	}
	if status.Driver != "sqlite" || status.Version < 1 {
		t.Errorf("status = %+v", status)
	}

	seed(t, dbPath, "good-1", "good-2", "bad-1")

	var res struct {
		Attempted int `json:"attempted"`
		Synced    int `json:"synced"`
		Failed    int `json:"failed"`
	}
	if err := json.Unmarshal([]byte(mustExecute(t, "sync")), &res); err != nil {
		t.Fatalf("sync output: %v", err)
	}
	if res.Attempted != 3 || res.Synced != 2 || res.Failed != 1 {
		t.Errorf("sync result = %+v", res)
	}
	if posts.Load() != 3 {
		t.Errorf("hub received %d posts, want 3", posts.Load())
	}

	var stats models.SyncStats
	if err := json.Unmarshal([]byte(mustExecute(t, "stats")), &stats); err != nil {
		t.Fatalf("stats output: %v", err)
	}
	if stats.Pending != 0 || stats.Synced != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	var requeued struct {
		Requeued int64 `json:"requeued"`
	}
	if err := json.Unmarshal([]byte(mustExecute(t, "requeue")), &requeued); err != nil {
		t.Fatalf("requeue output: %v", err)
	}
	if requeued.Requeued != 1 {
		t.Errorf("requeued = %d, want 1", requeued.Requeued)
	}

	table := mustExecute(t, "show", "bad-1", "--format", "table")
	if !strings.Contains(table, "bad-1") || !strings.Contains(table, "pending") {
		t.Errorf("show table = %q", table)
	}

	var msg map[string]any
	if err := json.Unmarshal([]byte(mustExecute(t, "show", "good-1")), &msg); err != nil {
		t.Fatalf("show output: %v", err)
	}
	if msg["uuid"] != "good-1" || msg["type"] != "default" {
		t.Errorf("message = %v", msg)
	}

	mustExecute(t, "schema", "drop", "--force")
	if _, err := execute(t, "stats"); err == nil {
		t.Error("stats should fail after the schema is dropped")
	}
}

func TestCLI_ShowMissing(t *testing.T) {
	setupEnv(t)
	mustExecute(t, "schema", "create")

	if _, err := execute(t, "show", "nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestCLI_Token(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "token", "--ttl", "1m")
	pattern := regexp.MustCompile(`^SharedAccessSignature sr=[^&]+&sig=[^&]+&se=\d+&skn=RootManageSharedAccessKey\n$`)
	if !pattern.MatchString(out) {
		t.Errorf("token = %q", out)
	}
}

func TestCLI_SyncWithoutSink(t *testing.T) {
	setupEnv(t)
	t.Setenv("EVENTLOG_SINK_ENDPOINT", "")
	mustExecute(t, "schema", "create")

	if _, err := execute(t, "sync"); err == nil || !strings.Contains(err.Error(), "EVENTLOG_SINK_ENDPOINT") {
		t.Errorf("error = %v, want missing endpoint", err)
	}
}
