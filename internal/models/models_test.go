package models_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/eventlog/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestPrepareForCreate_AssignsUUID(t *testing.T) {
	e := &models.Event{}
	e.PrepareForCreate()

	if e.UUID == "" {
		t.Fatal("expected uuid to be assigned")
	}
	if _, err := uuid.Parse(e.UUID); err != nil {
		t.Errorf("expected a valid uuid, got %q: %v", e.UUID, err)
	}
}

func TestPrepareForCreate_PreservesUUID(t *testing.T) {
	e := &models.Event{UUID: "custom-uuid-123"}
	e.PrepareForCreate()

	if e.UUID != "custom-uuid-123" {
		t.Errorf("UUID = %q, want custom-uuid-123", e.UUID)
	}
}

func TestPrepareForCreate_DefaultKind(t *testing.T) {
	e := &models.Event{}
	e.PrepareForCreate()

	if e.Kind != models.KindDefault {
		t.Errorf("Kind = %q, want %q", e.Kind, models.KindDefault)
	}
}

func TestPrepareForCreate_PreservesKind(t *testing.T) {
	e := &models.Event{Kind: models.KindHTTP}
	e.PrepareForCreate()

	if e.Kind != models.KindHTTP {
		t.Errorf("Kind = %q, want %q", e.Kind, models.KindHTTP)
	}
}

func TestPrepareForCreate_Idempotent(t *testing.T) {
	e := &models.Event{}
	e.PrepareForCreate()
	first := e.UUID
	e.PrepareForCreate()

	if e.UUID != first {
		t.Errorf("uuid changed on second call: %q -> %q", first, e.UUID)
	}
}

func TestSetActor(t *testing.T) {
	e := &models.Event{}
	e.SetActor(nil)
	if e.ActorType != nil || e.ActorID != nil {
		t.Fatal("nil principal should leave actor empty")
	}

	e.SetActor(&models.Principal{Type: "User", ID: "7"})
	if *e.ActorType != "User" || *e.ActorID != "7" {
		t.Errorf("actor = (%s, %s), want (User, 7)", *e.ActorType, *e.ActorID)
	}
}

func TestUnsynced(t *testing.T) {
	now := ptrTime()

	tests := []struct {
		name string
		ev   models.Event
		want bool
	}{
		{name: "fresh", ev: models.Event{}, want: true},
		{name: "synced", ev: models.Event{SyncedAt: now}, want: false},
		{name: "failed", ev: models.Event{SyncFailedAt: now}, want: false},
		{name: "both", ev: models.Event{SyncedAt: now, SyncFailedAt: now}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ev.Unsynced(); got != tc.want {
				t.Errorf("Unsynced() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	created := models.EventCreated
	bogus := models.LifecycleEvent("archived")

	tests := []struct {
		name    string
		ev      models.Event
		wantErr error
	}{
		{name: "empty", ev: models.Event{}},
		{name: "http", ev: models.Event{Kind: models.KindHTTP, RequestMethod: ptr("GET")}},
		{name: "model", ev: models.Event{Kind: models.KindModel, Event: &created}},
		{name: "context only", ev: models.Event{Context: map[string]any{"tenant": 1}}},
		{name: "bad kind", ev: models.Event{Kind: "other"}, wantErr: models.ErrInvalidKind},
		{name: "bad lifecycle", ev: models.Event{Event: &bogus}, wantErr: models.ErrInvalidLifecycleEvent},
		{
			name:    "mixed",
			ev:      models.Event{RequestURL: ptr("https://x"), Event: &created},
			wantErr: models.ErrMixedCapture,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ev.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEvent_ValidateUUIDLength(t *testing.T) {
	e := models.Event{UUID: strings.Repeat("x", 37)}

	err := e.Validate()
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum length") {
		t.Errorf("expected length error, got %v", err)
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []models.Kind{models.KindHTTP, models.KindModel, models.KindDefault} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if models.Kind("HTTP").Valid() {
		t.Error("kinds are case-sensitive")
	}
}

func ptrTime() *time.Time {
	now := time.Now()
	return &now
}
