package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/eventlog/internal/api"
	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/models"
)

func eventRouter(h *api.EventHandler) *gin.Engine {
	r := gin.New()
	r.GET("/events/:uuid", h.Get)
	r.GET("/stats", h.Stats)
	r.POST("/sync", h.Sync)
	return r
}

func TestEventGet(t *testing.T) {
	t.Parallel()

	synced := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &mockReader{getFn: func(_ context.Context, uuid string) (*models.Event, error) {
		if uuid != "abc" {
			return nil, models.ErrEventNotFound
		}
		return &models.Event{ID: 1, UUID: "abc", Kind: models.KindDefault, SyncedAt: &synced}, nil
	}}
	r := eventRouter(api.NewEventHandler(store, nil, testLogger()))

	w := doRequest(r, http.MethodGet, "/events/abc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Event    map[string]any `json:"event"`
		SyncedAt *time.Time     `json:"synced_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Event["uuid"] != "abc" || body.Event["type"] != "default" {
		t.Errorf("event = %v", body.Event)
	}
	if body.SyncedAt == nil || !body.SyncedAt.Equal(synced) {
		t.Errorf("synced_at = %v", body.SyncedAt)
	}
}

func TestEventGet_Errors(t *testing.T) {
	t.Parallel()

	store := &mockReader{getFn: func(_ context.Context, uuid string) (*models.Event, error) {
		if uuid == "boom" {
			return nil, errors.New("db down")
		}
		return nil, models.ErrEventNotFound
	}}
	r := eventRouter(api.NewEventHandler(store, nil, testLogger()))

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"not found", "/events/missing", http.StatusNotFound},
		{"store error", "/events/boom", http.StatusInternalServerError},
		{"uuid too long", "/events/" + strings.Repeat("a", 37), http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := doRequest(r, http.MethodGet, tc.path, ""); w.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, w.Code)
			}
		})
	}
}

func TestEventStats(t *testing.T) {
	t.Parallel()

	store := &mockReader{statsFn: func(context.Context) (*models.SyncStats, error) {
		return &models.SyncStats{Pending: 3, Synced: 10, Failed: 1}, nil
	}}
	r := eventRouter(api.NewEventHandler(store, nil, testLogger()))

	w := doRequest(r, http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var st models.SyncStats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if st.Pending != 3 || st.Synced != 10 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEventSync(t *testing.T) {
	t.Parallel()

	syncer := &mockSyncer{result: delivery.SweepResult{Attempted: 2, Synced: 1, Failed: 1}}
	r := eventRouter(api.NewEventHandler(&mockReader{}, syncer, testLogger()))

	w := doRequest(r, http.MethodPost, "/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res delivery.SweepResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res != syncer.result || syncer.calls != 1 {
		t.Errorf("result = %+v, calls = %d", res, syncer.calls)
	}
}

func TestEventSync_Unavailable(t *testing.T) {
	t.Parallel()

	r := eventRouter(api.NewEventHandler(&mockReader{}, nil, testLogger()))

	if w := doRequest(r, http.MethodPost, "/sync", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestEventSync_Error(t *testing.T) {
	t.Parallel()

	r := eventRouter(api.NewEventHandler(&mockReader{}, &mockSyncer{err: errors.New("boom")}, testLogger()))

	if w := doRequest(r, http.MethodPost, "/sync", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
