package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/db"
)

var errDropNeedsForce = errors.New("refusing to drop event_logs without --force")

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create, drop or inspect the event_logs schema",
	}

	cmd.AddCommand(newSchemaCreateCmd())
	cmd.AddCommand(newSchemaDropCmd())
	cmd.AddCommand(newSchemaStatusCmd())

	return cmd
}

// withSchemaDB loads the configuration, opens a database/sql handle for the
// configured driver and runs fn.
func withSchemaDB(cmd *cobra.Command, fn func(ctx context.Context, sqlDB *sql.DB, cfg *config.Config, log *logrus.Logger) error) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	if cfg.Connection.Value() == "" {
		return errors.New("EVENTLOG_CONNECTION is required")
	}

	sqlDB, err := db.Open(cfg.Driver, cfg.Connection.Value())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return fn(cmd.Context(), sqlDB, cfg, log)
}

func newSchemaCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSchemaDB(cmd, func(ctx context.Context, sqlDB *sql.DB, cfg *config.Config, log *logrus.Logger) error {
				return db.CreateSchema(ctx, sqlDB, cfg.Driver, log)
			})
		},
	}
}

func newSchemaDropCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Roll back every migration, dropping event_logs and its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return errDropNeedsForce
			}
			return withSchemaDB(cmd, func(ctx context.Context, sqlDB *sql.DB, cfg *config.Config, log *logrus.Logger) error {
				return db.DropSchema(ctx, sqlDB, cfg.Driver, log)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm destruction of all stored events")
	return cmd
}

func newSchemaStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSchemaDB(cmd, func(ctx context.Context, sqlDB *sql.DB, cfg *config.Config, _ *logrus.Logger) error {
				version, err := db.SchemaVersion(ctx, sqlDB, cfg.Driver)
				if err != nil {
					return err
				}

				status := struct {
					Driver  string `json:"driver"`
					Version int64  `json:"version"`
				}{cfg.Driver, version}

				return output(cmd.OutOrStdout(), status,
					[]string{"DRIVER", "VERSION"},
					[][]string{{cfg.Driver, strconv.FormatInt(version, 10)}})
			})
		},
	}
}
