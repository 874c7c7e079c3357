package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies how an event was captured.
type Kind string

// Event kinds.
const (
	KindHTTP    Kind = "http"
	KindModel   Kind = "model"
	KindDefault Kind = "default"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHTTP, KindModel, KindDefault:
		return true
	}
	return false
}

// LifecycleEvent names a domain-object transition.
type LifecycleEvent string

// Lifecycle transitions.
const (
	EventCreated  LifecycleEvent = "created"
	EventUpdated  LifecycleEvent = "updated"
	EventDeleted  LifecycleEvent = "deleted"
	EventRestored LifecycleEvent = "restored"
)

// Valid reports whether e is a known lifecycle transition.
func (e LifecycleEvent) Valid() bool {
	switch e {
	case EventCreated, EventUpdated, EventDeleted, EventRestored:
		return true
	}
	return false
}

// Principal is the authenticated actor at capture time.
type Principal struct {
	Type string
	ID   string
}

// EventData is the payload of a lifecycle capture.
type EventData struct {
	Event      LifecycleEvent `json:"event"`
	ModelType  string         `json:"model_type"`
	ModelID    string         `json:"model_id"`
	Attributes map[string]any `json:"attributes"`
	Changes    map[string]any `json:"changes"`
	Original   map[string]any `json:"original"`
	DirtyKeys  []string       `json:"dirty_keys"`
}

// Event is one captured HTTP request or lifecycle transition.
// Subject and actor are weak references: the referenced rows may be gone.
type Event struct {
	ID             int64           `json:"id"`
	UUID           string          `json:"uuid"`
	Kind           Kind            `json:"type"`
	SubjectType    *string         `json:"subject_type"`
	SubjectID      *string         `json:"subject_id"`
	ActorType      *string         `json:"user_type"`
	ActorID        *string         `json:"user_id"`
	RequestIP      *string         `json:"request_ip"`
	RequestMethod  *string         `json:"request_method"`
	RequestURL     *string         `json:"request_url"`
	RequestRoute   *string         `json:"request_route"`
	RequestHeaders map[string]any  `json:"request_headers"`
	RequestData    map[string]any  `json:"request_data"`
	Event          *LifecycleEvent `json:"event"`
	EventData      *EventData      `json:"event_data"`
	Context        map[string]any  `json:"context"`
	SyncedAt       *time.Time      `json:"synced_at"`
	SyncFailedAt   *time.Time      `json:"sync_failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PrepareForCreate assigns the identity and kind defaults. Values already
// set are kept verbatim.
func (e *Event) PrepareForCreate() {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = KindDefault
	}
}

// SetActor copies p onto the actor reference. A nil principal leaves it empty.
func (e *Event) SetActor(p *Principal) {
	if p == nil {
		return
	}
	e.ActorType = &p.Type
	e.ActorID = &p.ID
}

// Unsynced reports whether the event has never been delivered and is not
// marked as failed.
func (e *Event) Unsynced() bool {
	return e.SyncedAt == nil && e.SyncFailedAt == nil
}

func (e *Event) hasHTTPFields() bool {
	return e.RequestIP != nil || e.RequestMethod != nil || e.RequestURL != nil ||
		e.RequestRoute != nil || e.RequestHeaders != nil || e.RequestData != nil
}

func (e *Event) hasModelFields() bool {
	return e.Event != nil || e.EventData != nil
}

// Validate checks the event before it is written.
func (e *Event) Validate() error {
	if e.Kind != "" && !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if e.Event != nil && !e.Event.Valid() {
		return ErrInvalidLifecycleEvent
	}
	if e.hasHTTPFields() && e.hasModelFields() {
		return ErrMixedCapture
	}
	if len(e.UUID) > maxUUIDLen {
		return ErrFieldTooLong("uuid", maxUUIDLen)
	}
	return nil
}

const maxUUIDLen = 36

// SyncStats counts events by delivery state.
type SyncStats struct {
	Pending int64 `json:"pending"`
	Synced  int64 `json:"synced"`
	Failed  int64 `json:"failed"`
}
