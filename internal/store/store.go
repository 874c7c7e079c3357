// Package store persists captured events and tracks their delivery state.
//
// PGStore (pgx) and SQLiteStore (database/sql + modernc.org/sqlite) implement
// the same EventStore contract over the event_logs table. Sync-state updates
// are single UPDATE statements so duplicate delivery attempts never lose a
// write.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/dbpool"
	"github.com/persistorai/eventlog/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// EventStore is the persistence contract shared by both backends.
type EventStore interface {
	Create(ctx context.Context, ev *models.Event) (int64, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Event, error)
	ListUnsynced(ctx context.Context, limit int) ([]models.Event, error)
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	MarkSyncFailed(ctx context.Context, id int64, at time.Time) error
	RequeueFailed(ctx context.Context, failedBefore time.Time) (int64, error)
	Stats(ctx context.Context) (*models.SyncStats, error)
	HealthCheck(ctx context.Context) error
	Close()
}

// Base contains shared dependencies for the Postgres store.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Open connects to the configured backend. For postgres, conn is a URL; for
// sqlite, a file path.
func Open(ctx context.Context, driver, conn string, maxConns int32, log *logrus.Logger) (EventStore, error) {
	switch driver {
	case "postgres":
		pool, err := dbpool.NewPool(ctx, conn, maxConns)
		if err != nil {
			return nil, err
		}
		return NewPGStore(Base{Pool: pool, Log: log}), nil
	case "sqlite":
		return OpenSQLite(conn, log)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// prepare applies creation defaults and validates ev before insert.
func prepare(ev *models.Event, now time.Time) error {
	if ev == nil {
		return models.ErrInvalidEvent
	}

	ev.PrepareForCreate()

	if err := ev.Validate(); err != nil {
		return fmt.Errorf("validating event: %w", err)
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = ev.CreatedAt
	}

	return nil
}
