package store

import (
	"encoding/json"
	"fmt"

	"github.com/persistorai/eventlog/internal/models"
)

// eventColumns lists the columns selected for event queries.
const eventColumns = `id, uuid, type, subject_type, subject_id, user_type, user_id,
	request_ip, request_method, request_url, request_route,
	request_headers, request_data, event, event_data, context,
	synced_at, sync_failed_at, created_at, updated_at`

// insertColumns lists the columns written on create, in argument order.
const insertColumns = `uuid, type, subject_type, subject_id, user_type, user_id,
	request_ip, request_method, request_url, request_route,
	request_headers, request_data, event, event_data, context,
	created_at, updated_at`

// payloads holds the JSON-encoded columns of an event. Nil slices are NULL.
type payloads struct {
	headers   []byte
	data      []byte
	eventData []byte
	context   []byte
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func encodePayloads(ev *models.Event) (payloads, error) {
	var p payloads
	var err error

	if p.headers, err = marshalMap(ev.RequestHeaders); err != nil {
		return p, fmt.Errorf("marshaling request headers: %w", err)
	}
	if p.data, err = marshalMap(ev.RequestData); err != nil {
		return p, fmt.Errorf("marshaling request data: %w", err)
	}
	if p.context, err = marshalMap(ev.Context); err != nil {
		return p, fmt.Errorf("marshaling context: %w", err)
	}
	if ev.EventData != nil {
		if p.eventData, err = json.Marshal(ev.EventData); err != nil {
			return p, fmt.Errorf("marshaling event data: %w", err)
		}
	}

	return p, nil
}

func (p *payloads) decodeInto(ev *models.Event) error {
	if len(p.headers) > 0 {
		if err := json.Unmarshal(p.headers, &ev.RequestHeaders); err != nil {
			return fmt.Errorf("unmarshalling request headers: %w", err)
		}
	}
	if len(p.data) > 0 {
		if err := json.Unmarshal(p.data, &ev.RequestData); err != nil {
			return fmt.Errorf("unmarshalling request data: %w", err)
		}
	}
	if len(p.context) > 0 {
		if err := json.Unmarshal(p.context, &ev.Context); err != nil {
			return fmt.Errorf("unmarshalling context: %w", err)
		}
	}
	if len(p.eventData) > 0 {
		ev.EventData = &models.EventData{}
		if err := json.Unmarshal(p.eventData, ev.EventData); err != nil {
			return fmt.Errorf("unmarshalling event data: %w", err)
		}
	}

	return nil
}

func lifecycleString(e *models.LifecycleEvent) *string {
	if e == nil {
		return nil
	}
	s := string(*e)
	return &s
}

func lifecycleFrom(s *string) *models.LifecycleEvent {
	if s == nil {
		return nil
	}
	e := models.LifecycleEvent(*s)
	return &e
}
