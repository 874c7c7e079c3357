package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/models"
)

// PGStore provides data access for the event_logs table on PostgreSQL.
type PGStore struct {
	Base
}

// NewPGStore creates a PGStore.
func NewPGStore(base Base) *PGStore {
	return &PGStore{Base: base}
}

var _ EventStore = (*PGStore)(nil)

// Create inserts ev, assigning its uuid, kind and timestamps when unset,
// and returns the surrogate id. ev.ID is updated in place.
func (s *PGStore) Create(ctx context.Context, ev *models.Event) (int64, error) {
	if err := prepare(ev, time.Now().UTC()); err != nil {
		return 0, err
	}

	p, err := encodePayloads(ev)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = s.Pool.QueryRow(ctx, `
		INSERT INTO event_logs (`+insertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		ev.UUID, string(ev.Kind), ev.SubjectType, ev.SubjectID, ev.ActorType, ev.ActorID,
		ev.RequestIP, ev.RequestMethod, ev.RequestURL, ev.RequestRoute,
		p.headers, p.data, lifecycleString(ev.Event), p.eventData, p.context,
		ev.CreatedAt, ev.UpdatedAt,
	).Scan(&ev.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, models.ErrDuplicateKey
		}
		return 0, fmt.Errorf("inserting event: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"id":   ev.ID,
		"uuid": ev.UUID,
		"type": ev.Kind,
	}).Debug("event stored")

	return ev.ID, nil
}

// GetByUUID returns the event with the given uuid.
func (s *PGStore) GetByUUID(ctx context.Context, uuid string) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM event_logs WHERE uuid = $1`, uuid)

	ev, err := scanPGEvent(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("getting event: %w", err)
	}

	return ev, nil
}

// ListUnsynced returns events that were never delivered and are not marked
// failed, oldest first.
func (s *PGStore) ListUnsynced(ctx context.Context, limit int) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT `+eventColumns+` FROM event_logs
		WHERE synced_at IS NULL AND sync_failed_at IS NULL
		ORDER BY id
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing unsynced events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev, err := scanPGEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

// MarkSynced records a successful delivery and clears any failure mark.
func (s *PGStore) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	return s.updateSyncState(ctx, `
		UPDATE event_logs SET synced_at = $2, sync_failed_at = NULL, updated_at = $2
		WHERE id = $1`, id, at)
}

// MarkSyncFailed records a failed delivery. synced_at is left untouched.
func (s *PGStore) MarkSyncFailed(ctx context.Context, id int64, at time.Time) error {
	return s.updateSyncState(ctx, `
		UPDATE event_logs SET sync_failed_at = $2, updated_at = $2
		WHERE id = $1`, id, at)
}

func (s *PGStore) updateSyncState(ctx context.Context, query string, id int64, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return fmt.Errorf("updating sync state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrEventNotFound
	}

	return nil
}

// RequeueFailed clears the failure mark on undelivered events that failed
// at or before failedBefore, returning them to the unsynced set.
func (s *PGStore) RequeueFailed(ctx context.Context, failedBefore time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `
		UPDATE event_logs SET sync_failed_at = NULL, updated_at = NOW()
		WHERE synced_at IS NULL AND sync_failed_at IS NOT NULL AND sync_failed_at <= $1`,
		failedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("requeueing failed events: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Stats counts events by delivery state.
func (s *PGStore) Stats(ctx context.Context) (*models.SyncStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var st models.SyncStats

	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE synced_at IS NULL AND sync_failed_at IS NULL),
			COUNT(*) FILTER (WHERE synced_at IS NOT NULL),
			COUNT(*) FILTER (WHERE synced_at IS NULL AND sync_failed_at IS NOT NULL)
		FROM event_logs`).Scan(&st.Pending, &st.Synced, &st.Failed)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	return &st, nil
}

// HealthCheck verifies database connectivity.
func (s *PGStore) HealthCheck(ctx context.Context) error {
	return s.Pool.HealthCheck(ctx)
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.Pool.Close()
}

// scanPGEvent scans a single row selected with eventColumns.
func scanPGEvent(scan func(dest ...any) error) (*models.Event, error) {
	var ev models.Event
	var kind string
	var event *string
	var p payloads

	err := scan(
		&ev.ID, &ev.UUID, &kind,
		&ev.SubjectType, &ev.SubjectID, &ev.ActorType, &ev.ActorID,
		&ev.RequestIP, &ev.RequestMethod, &ev.RequestURL, &ev.RequestRoute,
		&p.headers, &p.data, &event, &p.eventData, &p.context,
		&ev.SyncedAt, &ev.SyncFailedAt, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Kind = models.Kind(kind)
	ev.Event = lifecycleFrom(event)

	if err := p.decodeInto(&ev); err != nil {
		return nil, err
	}

	return &ev, nil
}
