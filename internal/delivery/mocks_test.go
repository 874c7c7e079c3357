package delivery_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// mockSyncStore records MarkSynced/MarkSyncFailed calls.
type mockSyncStore struct {
	mu     sync.Mutex
	synced map[int64]time.Time
	failed map[int64]time.Time
	err    error
}

func newMockSyncStore() *mockSyncStore {
	return &mockSyncStore{synced: map[int64]time.Time{}, failed: map[int64]time.Time{}}
}

func (m *mockSyncStore) MarkSynced(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.synced[id] = at
	return nil
}

func (m *mockSyncStore) MarkSyncFailed(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.failed[id] = at
	return nil
}

// mockSweepStore serves a fixed batch of unsynced events.
type mockSweepStore struct {
	mu            sync.Mutex
	events        []models.Event
	listErr       error
	requeueCalls  []time.Time
	requeueResult int64
	lastLimit     int
}

func (m *mockSweepStore) ListUnsynced(_ context.Context, limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	n := min(limit, len(m.events))
	out := make([]models.Event, n)
	copy(out, m.events[:n])
	return out, nil
}

func (m *mockSweepStore) RequeueFailed(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeueCalls = append(m.requeueCalls, before)
	return m.requeueResult, nil
}

func (m *mockSweepStore) Stats(_ context.Context) (*models.SyncStats, error) {
	return &models.SyncStats{Pending: int64(len(m.events))}, nil
}

// mockSender returns outcomes keyed by event UUID. Unknown UUIDs sync.
type mockSender struct {
	mu       sync.Mutex
	outcomes map[string]delivery.Outcome
	errs     map[string]error
	sent     []string
	inflight int
	peak     int
	delay    time.Duration
}

func (m *mockSender) Send(_ context.Context, ev *models.Event) (delivery.Outcome, error) {
	m.mu.Lock()
	m.sent = append(m.sent, ev.UUID)
	m.inflight++
	m.peak = max(m.peak, m.inflight)
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--

	if err := m.errs[ev.UUID]; err != nil {
		return delivery.OutcomeFailed, err
	}
	if o, ok := m.outcomes[ev.UUID]; ok {
		return o, nil
	}
	return delivery.OutcomeSynced, nil
}

func (m *mockSender) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
