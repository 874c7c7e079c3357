package delivery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/metrics"
	"github.com/persistorai/eventlog/internal/models"
)

// Sender delivers one event.
type Sender interface {
	Send(ctx context.Context, ev *models.Event) (Outcome, error)
}

// SweepStore is the store surface the sweeper needs.
type SweepStore interface {
	ListUnsynced(ctx context.Context, limit int) ([]models.Event, error)
	RequeueFailed(ctx context.Context, failedBefore time.Time) (int64, error)
	Stats(ctx context.Context) (*models.SyncStats, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Requeued  int64 `json:"requeued"`
	Attempted int   `json:"attempted"`
	Synced    int   `json:"synced"`
	Failed    int   `json:"failed"`
}

// Sweeper periodically delivers unsynced events.
type Sweeper struct {
	store        SweepStore
	sender       Sender
	log          *logrus.Logger
	interval     time.Duration
	batchSize    int
	concurrency  int
	requeueAfter time.Duration
	wake         chan struct{}
	now          func() time.Time
}

// NewSweeper creates a Sweeper configured by cfg.
func NewSweeper(store SweepStore, sender Sender, log *logrus.Logger, cfg config.SweepConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Sweeper{
		store:        store,
		sender:       sender,
		log:          log,
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		concurrency:  cfg.Concurrency,
		requeueAfter: cfg.RequeueAfter,
		wake:         make(chan struct{}, 1),
		now:          time.Now,
	}
}

// Wake requests a sweep before the next tick. Non-blocking; coalesces with
// a pending wake.
func (s *Sweeper) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run sweeps on every tick and wake until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval":    s.interval,
		"batch_size":  s.batchSize,
		"concurrency": s.concurrency,
	}).Info("delivery sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("delivery sweeper stopped")
			return
		case <-ticker.C:
		case <-s.wake:
		}

		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("delivery sweep failed")
		}
	}
}

// SweepOnce requeues stale failures when configured, then delivers one batch
// of unsynced events.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	if s.requeueAfter > 0 {
		n, err := s.store.RequeueFailed(ctx, s.now().Add(-s.requeueAfter))
		if err != nil {
			return res, err
		}
		res.Requeued = n
	}

	events, err := s.store.ListUnsynced(ctx, s.batchSize)
	if err != nil {
		return res, err
	}
	res.Attempted = len(events)

	var synced, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range events {
		ev := &events[i]
		g.Go(func() error {
			outcome, err := s.sender.Send(ctx, ev)
			switch outcome {
			case OutcomeSynced:
				synced.Add(1)
			case OutcomeFailed:
				failed.Add(1)
			}
			if err != nil {
				return fmt.Errorf("event %s: %w", ev.UUID, err)
			}
			return nil
		})
	}

	err = g.Wait()
	res.Synced = int(synced.Load())
	res.Failed = int(failed.Load())

	s.refreshGauges(ctx)

	if res.Attempted > 0 || res.Requeued > 0 {
		s.log.WithFields(logrus.Fields{
			"attempted": res.Attempted,
			"synced":    res.Synced,
			"failed":    res.Failed,
			"requeued":  res.Requeued,
		}).Info("delivery sweep finished")
	}

	return res, err
}

func (s *Sweeper) refreshGauges(ctx context.Context) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		s.log.WithError(err).Debug("refreshing event gauges")
		return
	}

	metrics.EventsByState.WithLabelValues("pending").Set(float64(st.Pending))
	metrics.EventsByState.WithLabelValues("synced").Set(float64(st.Synced))
	metrics.EventsByState.WithLabelValues("failed").Set(float64(st.Failed))
}
