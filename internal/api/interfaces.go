package api

import (
	"context"

	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/models"
)

// EventReader is the read side of the event store used by the worker API.
type EventReader interface {
	GetByUUID(ctx context.Context, uuid string) (*models.Event, error)
	Stats(ctx context.Context) (*models.SyncStats, error)
	HealthCheck(ctx context.Context) error
}

// Syncer runs one delivery sweep on demand.
type Syncer interface {
	SweepOnce(ctx context.Context) (delivery.SweepResult, error)
}
