// Command eventlog manages the event log store and runs the Event Hub
// delivery worker.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/store"
)

var flagFmt string

func versionString() string {
	return fmt.Sprintf("eventlog version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "eventlog",
		Short:        "Audit event store and Event Hub delivery worker",
		Version:      versionString(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(flagFmt)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table")

	root.AddCommand(newSchemaCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newRequeueCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newTokenCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads the configuration and builds the process logger.
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	return cfg, newLogger(cfg.LogLevel), nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)

	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}

	return log
}

func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.EventStore, error) {
	if cfg.Connection.Value() == "" {
		return nil, fmt.Errorf("EVENTLOG_CONNECTION is required")
	}

	st, err := store.Open(ctx, cfg.Driver, cfg.Connection.Value(), cfg.DBMaxConns, log)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}

	return st, nil
}

// newSweeper wires the Event Hub client and sweeper over st. It fails when
// the sink is not fully configured.
func newSweeper(cfg *config.Config, st store.EventStore, log *logrus.Logger) (*delivery.Sweeper, error) {
	if err := cfg.ValidateSink(); err != nil {
		return nil, fmt.Errorf("event hub sink: %w", err)
	}

	client, err := delivery.NewClient(cfg.Sink, st, log)
	if err != nil {
		return nil, fmt.Errorf("event hub client: %w", err)
	}

	return delivery.NewSweeper(st, client, log, cfg.Sweep), nil
}
