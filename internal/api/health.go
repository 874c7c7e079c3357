// Package api serves the delivery worker's HTTP surface: health, readiness,
// metrics, event lookup and a manual sync trigger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	store          EventReader
	log            *logrus.Logger
	version        string
	sinkConfigured bool
	startTime      time.Time
}

// NewHealthHandler creates a HealthHandler. A nil store reports the
// database as not configured.
func NewHealthHandler(store EventReader, log *logrus.Logger, version string, sinkConfigured bool) *HealthHandler {
	return &HealthHandler{
		store:          store,
		log:            log,
		version:        version,
		sinkConfigured: sinkConfigured,
		startTime:      time.Now(),
	}
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.store == nil {
		resp.Database = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/ready. The database and schema must be
// usable; a missing sink only degrades readiness.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"schema":   "ok",
		"sink":     "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.checkDatabase(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		checks["schema"] = "unknown"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if err := h.checkSchema(ctx); err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		checks["schema"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	if !h.sinkConfigured {
		checks["sink"] = "not_configured"
	}

	c.JSON(statusCode, readinessResponse{
		Status: status,
		Checks: checks,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("no event store configured")
	}

	return h.store.HealthCheck(ctx)
}

// checkSchema verifies the event table exists by reading its counters.
func (h *HealthHandler) checkSchema(ctx context.Context) error {
	if _, err := h.store.Stats(ctx); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	return nil
}
