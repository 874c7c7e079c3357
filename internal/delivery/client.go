package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/metrics"
	"github.com/persistorai/eventlog/internal/models"
)

var tracer = otel.Tracer("github.com/persistorai/eventlog/internal/delivery")

// Outcome is the result of one delivery attempt.
type Outcome string

// Delivery outcomes.
const (
	OutcomeSynced Outcome = "synced"
	OutcomeFailed Outcome = "failed"
)

// SyncStore records delivery outcomes.
type SyncStore interface {
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	MarkSyncFailed(ctx context.Context, id int64, at time.Time) error
}

// Client posts events to an Event Hub.
type Client struct {
	http       *resty.Client
	signer     *TokenSigner
	messageURL string
	store      SyncStore
	log        *logrus.Logger
	now        func() time.Time
}

// NewClient creates a Client for the sink described by cfg.
func NewClient(cfg config.SinkConfig, store SyncStore, log *logrus.Logger) (*Client, error) {
	signer, err := NewTokenSigner(cfg.Endpoint, cfg.PrimaryKey.Value(), cfg.PolicyName, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:       resty.New().SetTimeout(timeout),
		signer:     signer,
		messageURL: strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.Trim(cfg.Path, "/") + "/messages",
		store:      store,
		log:        log,
		now:        time.Now,
	}, nil
}

// Send delivers ev and records the outcome on it and in the store.
//
// A transport error or non-2xx response is not returned as an error: the
// event is marked failed and OutcomeFailed is returned. An error is returned
// for a nil or incomplete event, and when the outcome cannot be recorded.
func (c *Client) Send(ctx context.Context, ev *models.Event) (Outcome, error) {
	if ev == nil || ev.ID == 0 {
		return "", models.ErrInvalidEvent
	}

	msg, err := NewMessage(ev)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshaling message: %w", err)
	}

	ctx, span := tracer.Start(ctx, "eventhub.send", trace.WithAttributes(
		attribute.String("eventlog.uuid", ev.UUID),
		attribute.String("eventlog.type", string(ev.Kind)),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.signer.Token()).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.messageURL)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	now := c.now().UTC()

	if err != nil || !resp.IsSuccess() {
		fields := logrus.Fields{"uuid": ev.UUID, "id": ev.ID}
		if err != nil {
			span.RecordError(err)
			c.log.WithError(err).WithFields(fields).Warn("event hub delivery failed")
		} else {
			fields["status"] = resp.StatusCode()
			c.log.WithFields(fields).Warn("event hub rejected event")
		}
		span.SetStatus(codes.Error, "delivery failed")

		return c.record(ctx, ev, OutcomeFailed, now)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))

	return c.record(ctx, ev, OutcomeSynced, now)
}

// record persists the outcome even when ctx has been cancelled, so a
// timed-out delivery is still marked failed.
func (c *Client) record(ctx context.Context, ev *models.Event, outcome Outcome, at time.Time) (Outcome, error) {
	metrics.DeliveriesTotal.WithLabelValues(string(outcome)).Inc()
	ctx = context.WithoutCancel(ctx)

	var err error
	if outcome == OutcomeSynced {
		ev.SyncedAt = &at
		ev.SyncFailedAt = nil
		err = c.store.MarkSynced(ctx, ev.ID, at)
	} else {
		ev.SyncFailedAt = &at
		err = c.store.MarkSyncFailed(ctx, ev.ID, at)
	}
	ev.UpdatedAt = at

	if err != nil {
		return outcome, fmt.Errorf("recording %s outcome for event %d: %w", outcome, ev.ID, err)
	}

	return outcome, nil
}
