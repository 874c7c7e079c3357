package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/eventlog/internal/api"
	"github.com/persistorai/eventlog/internal/capture"
	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/db"
	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/store"
	"github.com/persistorai/eventlog/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the delivery sweeper and the worker HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			return runWorker(ctx, cfg, log)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, "eventlog-worker", config.Version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	sweeper, err := newSweeper(cfg, st, log)
	if err != nil {
		log.WithError(err).Warn("delivery disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(ctx, routerDeps(cfg, st, sweeper, log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if sweeper != nil {
		g.Go(func() error {
			sweeper.Run(gctx)
			return nil
		})
		startNotifyBridge(gctx, st, sweeper, log)
	}

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"version": config.Version,
			"driver":  cfg.Driver,
		}).Info("eventlog worker listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("worker api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func routerDeps(cfg *config.Config, st store.EventStore, sweeper *delivery.Sweeper, log *logrus.Logger) *api.RouterDeps {
	routes := capture.NewRouteNames()

	deps := &api.RouterDeps{
		Log:            log,
		Store:          st,
		Capture:        capture.NewHTTPCapture(config.NewHolder(cfg), st, api.ClientPrincipal, routes, log),
		Routes:         routes,
		APIToken:       cfg.APIToken.Value(),
		CORSOrigins:    cfg.CORSOrigins,
		Version:        config.Version,
		SinkConfigured: sweeper != nil,
	}
	if sweeper != nil {
		deps.Syncer = sweeper
	}

	return deps
}

// startNotifyBridge wakes the sweeper on inserts when the store is
// Postgres. Without it the sweeper still runs on its interval.
func startNotifyBridge(ctx context.Context, st store.EventStore, sweeper *delivery.Sweeper, log *logrus.Logger) {
	pg, ok := st.(*store.PGStore)
	if !ok {
		return
	}

	if err := db.NewNotifyBridge(log, pg.Pool, sweeper).Start(ctx); err != nil {
		log.WithError(err).Warn("notify bridge unavailable, relying on sweep interval")
	}
}
