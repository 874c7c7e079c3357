package capture_test

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/models"
)

type mockWriter struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (m *mockWriter) Create(_ context.Context, ev *models.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	ev.PrepareForCreate()
	m.events = append(m.events, ev)
	ev.ID = int64(len(m.events))

	return ev.ID, nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockWriter) last() *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func activeSettings() *config.Holder {
	cfg := config.Default()
	cfg.Connection = "postgres://localhost/events"
	return config.NewHolder(cfg)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// customer is an Auditable test subject.
type customer struct {
	id     string
	hidden []string
}

func (c customer) AuditType() string      { return "Customer" }
func (c customer) AuditKey() string       { return c.id }
func (c customer) HiddenFields() []string { return c.hidden }
