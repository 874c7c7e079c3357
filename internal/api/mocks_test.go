package api_test

import (
	"context"
	"sync"

	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/models"
)

// mockReader implements api.EventReader for testing.
type mockReader struct {
	getFn    func(ctx context.Context, uuid string) (*models.Event, error)
	statsFn  func(ctx context.Context) (*models.SyncStats, error)
	healthFn func(ctx context.Context) error
}

func (m *mockReader) GetByUUID(ctx context.Context, uuid string) (*models.Event, error) {
	if m.getFn == nil {
		return nil, models.ErrEventNotFound
	}
	return m.getFn(ctx, uuid)
}

func (m *mockReader) Stats(ctx context.Context) (*models.SyncStats, error) {
	if m.statsFn == nil {
		return &models.SyncStats{}, nil
	}
	return m.statsFn(ctx)
}

func (m *mockReader) HealthCheck(ctx context.Context) error {
	if m.healthFn == nil {
		return nil
	}
	return m.healthFn(ctx)
}

// mockSyncer implements api.Syncer for testing.
type mockSyncer struct {
	result delivery.SweepResult
	err    error
	calls  int
}

func (m *mockSyncer) SweepOnce(context.Context) (delivery.SweepResult, error) {
	m.calls++
	return m.result, m.err
}

// mockWriter captures events created by the HTTP capture middleware.
type mockWriter struct {
	mu     sync.Mutex
	events []*models.Event
}

func (m *mockWriter) Create(_ context.Context, ev *models.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.PrepareForCreate()
	m.events = append(m.events, ev)
	return int64(len(m.events)), nil
}
