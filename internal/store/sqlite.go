package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/persistorai/eventlog/internal/db"
	"github.com/persistorai/eventlog/internal/models"
)

// SQLiteStore provides data access for the event_logs table on SQLite.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	sqlDB *sql.DB
	log   *logrus.Logger
}

var _ EventStore = (*SQLiteStore)(nil)

// OpenSQLite opens the database file at path. The schema must already exist.
func OpenSQLite(path string, log *logrus.Logger) (*SQLiteStore, error) {
	sqlDB, err := db.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &SQLiteStore{sqlDB: sqlDB, log: log}, nil
}

// DB exposes the handle for schema management.
func (s *SQLiteStore) DB() *sql.DB {
	return s.sqlDB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullableMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Create inserts ev, assigning its uuid, kind and timestamps when unset,
// and returns the surrogate id. ev.ID is updated in place.
func (s *SQLiteStore) Create(ctx context.Context, ev *models.Event) (int64, error) {
	if err := prepare(ev, time.Now().UTC()); err != nil {
		return 0, err
	}

	// Round-trip precision is milliseconds.
	ev.CreatedAt = fromMillis(toMillis(ev.CreatedAt))
	ev.UpdatedAt = fromMillis(toMillis(ev.UpdatedAt))

	p, err := encodePayloads(ev)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO event_logs (`+insertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UUID, string(ev.Kind), ev.SubjectType, ev.SubjectID, ev.ActorType, ev.ActorID,
		ev.RequestIP, ev.RequestMethod, ev.RequestURL, ev.RequestRoute,
		nullableJSON(p.headers), nullableJSON(p.data), lifecycleString(ev.Event),
		nullableJSON(p.eventData), nullableJSON(p.context),
		toMillis(ev.CreatedAt), toMillis(ev.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, models.ErrDuplicateKey
		}
		return 0, fmt.Errorf("inserting event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading event id: %w", err)
	}
	ev.ID = id

	s.log.WithFields(logrus.Fields{
		"id":   ev.ID,
		"uuid": ev.UUID,
		"type": ev.Kind,
	}).Debug("event stored")

	return id, nil
}

// nullableJSON stores JSON as TEXT, NULL when absent.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// GetByUUID returns the event with the given uuid.
func (s *SQLiteStore) GetByUUID(ctx context.Context, uuid string) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM event_logs WHERE uuid = ?`, uuid)

	ev, err := scanSQLiteEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("getting event: %w", err)
	}

	return ev, nil
}

// ListUnsynced returns events that were never delivered and are not marked
// failed, oldest first.
func (s *SQLiteStore) ListUnsynced(ctx context.Context, limit int) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM event_logs
		WHERE synced_at IS NULL AND sync_failed_at IS NULL
		ORDER BY id
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing unsynced events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev, err := scanSQLiteEvent(rows.Scan)
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
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	return s.updateSyncState(ctx, `
		UPDATE event_logs SET synced_at = ?, sync_failed_at = NULL, updated_at = ?
		WHERE id = ?`, id, at)
}

// MarkSyncFailed records a failed delivery. synced_at is left untouched.
func (s *SQLiteStore) MarkSyncFailed(ctx context.Context, id int64, at time.Time) error {
	return s.updateSyncState(ctx, `
		UPDATE event_logs SET sync_failed_at = ?, updated_at = ?
		WHERE id = ?`, id, at)
}

func (s *SQLiteStore) updateSyncState(ctx context.Context, query string, id int64, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ms := toMillis(at)

	res, err := s.sqlDB.ExecContext(ctx, query, ms, ms, id)
	if err != nil {
		return fmt.Errorf("updating sync state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrEventNotFound
	}

	return nil
}

// RequeueFailed clears the failure mark on undelivered events that failed
// at or before failedBefore, returning them to the unsynced set.
func (s *SQLiteStore) RequeueFailed(ctx context.Context, failedBefore time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE event_logs SET sync_failed_at = NULL, updated_at = ?
		WHERE synced_at IS NULL AND sync_failed_at IS NOT NULL AND sync_failed_at <= ?`,
		toMillis(time.Now()), toMillis(failedBefore))
	if err != nil {
		return 0, fmt.Errorf("requeueing failed events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}

	return n, nil
}

// Stats counts events by delivery state.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.SyncStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var st models.SyncStats

	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN synced_at IS NULL AND sync_failed_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced_at IS NULL AND sync_failed_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM event_logs`).Scan(&st.Pending, &st.Synced, &st.Failed)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	return &st, nil
}

// HealthCheck verifies the database file is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() {
	if err := s.sqlDB.Close(); err != nil {
		s.log.WithError(err).Warn("closing sqlite store")
	}
}

// scanSQLiteEvent scans a single row selected with eventColumns.
func scanSQLiteEvent(scan func(dest ...any) error) (*models.Event, error) {
	var ev models.Event
	var kind string
	var event *string
	var headers, data, eventData, ctxJSON sql.NullString
	var syncedAt, failedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&ev.ID, &ev.UUID, &kind,
		&ev.SubjectType, &ev.SubjectID, &ev.ActorType, &ev.ActorID,
		&ev.RequestIP, &ev.RequestMethod, &ev.RequestURL, &ev.RequestRoute,
		&headers, &data, &event, &eventData, &ctxJSON,
		&syncedAt, &failedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Kind = models.Kind(kind)
	ev.Event = lifecycleFrom(event)
	ev.SyncedAt = nullableMillis(syncedAt)
	ev.SyncFailedAt = nullableMillis(failedAt)
	ev.CreatedAt = fromMillis(createdAt)
	ev.UpdatedAt = fromMillis(updatedAt)

	p := payloads{
		headers:   nullStringBytes(headers),
		data:      nullStringBytes(data),
		eventData: nullStringBytes(eventData),
		context:   nullStringBytes(ctxJSON),
	}
	if err := p.decodeInto(&ev); err != nil {
		return nil, err
	}

	return &ev, nil
}

func nullStringBytes(v sql.NullString) []byte {
	if !v.Valid {
		return nil
	}
	return []byte(v.String)
}
