package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/dbpool"
)

// validChannel matches safe PostgreSQL LISTEN channel names.
var validChannel = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	listenChannel     = "event_logs_created"
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

// Waker is notified when new events are inserted.
type Waker interface {
	Wake()
}

// NotifyBridge subscribes to PostgreSQL LISTEN/NOTIFY on the
// event_logs_created channel and wakes the delivery sweeper on each insert.
type NotifyBridge struct {
	log   *logrus.Logger
	pool  *dbpool.Pool
	waker Waker
}

// NewNotifyBridge creates a NotifyBridge wired to the given pool and waker.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, waker Waker) *NotifyBridge {
	return &NotifyBridge{
		log:   log,
		pool:  pool,
		waker: waker,
	}
}

// Start launches the LISTEN/NOTIFY loop in a background goroutine.
// It verifies the initial connection before returning. If the initial
// LISTEN fails, it returns an error. The background goroutine handles
// reconnection for subsequent failures.
func (b *NotifyBridge) Start(ctx context.Context) error {
	if !validChannel.MatchString(listenChannel) {
		return fmt.Errorf("notify bridge: invalid channel name %q", listenChannel)
	}

	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: database not reachable: %w", err)
	}

	go b.listen(ctx)

	return nil
}

// listen is the main loop that acquires a connection, subscribes to the
// channel, and processes notifications until the context is cancelled.
func (b *NotifyBridge) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.subscribeAndForward(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		b.log.WithError(err).WithField("retry_in", backoff).
			Warn("notify bridge connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

// subscribeAndForward holds a connection in LISTEN and blocks on
// notifications until the connection fails or the context is cancelled.
func (b *NotifyBridge) subscribeAndForward(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	// LISTEN takes the channel inline, not as a parameter.
	sanitizedChannel := pgx.Identifier{listenChannel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitizedChannel); err != nil {
		return fmt.Errorf("executing LISTEN: %w", err)
	}

	b.log.WithField("channel", listenChannel).Info("notify bridge listening")

	for {
		// Set a 2-minute read deadline so we periodically check ctx cancellation.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(2 * time.Minute)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// On timeout, loop back to check context and retry.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.handleNotification(notification)
	}
}

// handleNotification wakes the sweeper for a single insert notification.
func (b *NotifyBridge) handleNotification(n *pgconn.Notification) {
	var payload struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		b.log.WithError(err).Warn("dropping malformed notification")
		return
	}

	b.log.WithFields(logrus.Fields{
		"channel": n.Channel,
		"pid":     n.PID,
		"count":   payload.Count,
	}).Debug("notification received")

	if payload.Count > 0 {
		b.waker.Wake()
	}
}

// nextBackoff doubles the current backoff duration with ±25% jitter,
// capped at maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		next = maxBackoff
	}

	// Add ±25% jitter.
	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(jitter)
}
