// Package delivery ships stored events to an Azure Event Hub and records
// the outcome on each event.
package delivery

import (
	"time"

	"github.com/persistorai/eventlog/internal/models"
)

// Message is the fixed-shape record posted to the Event Hub. Absent fields
// are encoded as null, never omitted.
type Message struct {
	UUID           string            `json:"uuid"`
	Type           string            `json:"type"`
	SubjectType    *string           `json:"subject_type"`
	SubjectID      *string           `json:"subject_id"`
	UserType       *string           `json:"user_type"`
	UserID         *string           `json:"user_id"`
	RequestRoute   *string           `json:"request_route"`
	RequestMethod  *string           `json:"request_method"`
	RequestURL     *string           `json:"request_url"`
	RequestIP      *string           `json:"request_ip"`
	RequestHeaders map[string]any    `json:"request_headers"`
	RequestData    map[string]any    `json:"request_data"`
	Event          *string           `json:"event"`
	EventData      *models.EventData `json:"event_data"`
	Context        map[string]any    `json:"context"`
	CreatedAt      string            `json:"created_at"`
}

// NewMessage projects ev into its wire record.
func NewMessage(ev *models.Event) (*Message, error) {
	if ev == nil || ev.UUID == "" || !ev.Kind.Valid() {
		return nil, models.ErrInvalidEvent
	}

	m := &Message{
		UUID:           ev.UUID,
		Type:           string(ev.Kind),
		SubjectType:    ev.SubjectType,
		SubjectID:      ev.SubjectID,
		UserType:       ev.ActorType,
		UserID:         ev.ActorID,
		RequestRoute:   ev.RequestRoute,
		RequestMethod:  ev.RequestMethod,
		RequestURL:     ev.RequestURL,
		RequestIP:      ev.RequestIP,
		RequestHeaders: ev.RequestHeaders,
		RequestData:    ev.RequestData,
		EventData:      ev.EventData,
		Context:        ev.Context,
		CreatedAt:      ev.CreatedAt.UTC().Format(time.RFC3339),
	}

	if ev.Event != nil {
		name := string(*ev.Event)
		m.Event = &name
	}

	return m, nil
}
