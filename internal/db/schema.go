// Package db manages the event_logs schema and the Postgres insert
// notifications.
//
// Schema files live in internal/db/migrations/<driver>/ and are applied with
// goose (github.com/pressly/goose/v3). Dropping the schema runs every down
// migration, so the table and its trigger are removed together.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register sqlite as database/sql driver

	"github.com/persistorai/eventlog/internal/db/migrations"
)

// Open returns a *sql.DB for driver ("postgres" or "sqlite"). For sqlite,
// conn is a file path.
func Open(driver, conn string) (*sql.DB, error) {
	switch driver {
	case "postgres":
		sqlDB, err := sql.Open("pgx", conn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return sqlDB, nil
	case "sqlite":
		if conn == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		dsn := filepath.Clean(conn) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return sqlDB, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func newProvider(sqlDB *sql.DB, driver string) (*goose.Provider, error) {
	fsys, err := migrations.FS(driver)
	if err != nil {
		return nil, err
	}

	dialect := goose.DialectPostgres
	if driver == "sqlite" {
		dialect = goose.DialectSQLite3
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("creating goose provider: %w", err)
	}

	return provider, nil
}

// CreateSchema applies all pending schema migrations.
func CreateSchema(ctx context.Context, sqlDB *sql.DB, driver string, log *logrus.Logger) error {
	provider, err := newProvider(sqlDB, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	if err := logResults(log, results); err != nil {
		return err
	}

	if len(results) == 0 {
		log.Debug("event_logs schema already up to date")
	}

	return nil
}

// DropSchema rolls back every migration, removing the event_logs table.
func DropSchema(ctx context.Context, sqlDB *sql.DB, driver string, log *logrus.Logger) error {
	provider, err := newProvider(sqlDB, driver)
	if err != nil {
		return err
	}

	results, err := provider.DownTo(ctx, 0)
	if err != nil {
		return fmt.Errorf("rolling back migrations: %w", err)
	}

	return logResults(log, results)
}

// SchemaVersion returns the applied schema version, 0 when none.
func SchemaVersion(ctx context.Context, sqlDB *sql.DB, driver string) (int64, error) {
	provider, err := newProvider(sqlDB, driver)
	if err != nil {
		return 0, err
	}

	v, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	return v, nil
}

func logResults(log *logrus.Logger, results []*goose.MigrationResult) error {
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":   r.Source.Version,
			"file":      r.Source.Path,
			"direction": r.Direction,
			"duration":  r.Duration,
		}).Info("migration applied")
	}

	return nil
}
