package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/delivery"
	"github.com/persistorai/eventlog/internal/models"
)

// maxUUIDLength matches the width of the uuid column.
const maxUUIDLength = 36

// EventHandler serves event lookup and delivery state endpoints.
type EventHandler struct {
	store  EventReader
	syncer Syncer
	log    *logrus.Logger
}

// NewEventHandler creates an EventHandler. A nil syncer disables the
// manual sync trigger.
func NewEventHandler(store EventReader, syncer Syncer, log *logrus.Logger) *EventHandler {
	return &EventHandler{store: store, syncer: syncer, log: log}
}

// Get handles GET /api/v1/events/:uuid and returns the event in its wire
// shape.
func (h *EventHandler) Get(c *gin.Context) {
	id := c.Param("uuid")
	if id == "" || len(id) > maxUUIDLength {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid event uuid")
		return
	}

	ev, err := h.store.GetByUUID(c.Request.Context(), id)
	if errors.Is(err, models.ErrEventNotFound) {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "event not found")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("uuid", id).Error("failed to load event")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to load event")
		return
	}

	msg, err := delivery.NewMessage(ev)
	if err != nil {
		h.log.WithError(err).WithField("uuid", id).Error("stored event is not deliverable")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to load event")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event":          msg,
		"synced_at":      ev.SyncedAt,
		"sync_failed_at": ev.SyncFailedAt,
	})
}

// Stats handles GET /api/v1/stats.
func (h *EventHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to read event stats")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to read event stats")
		return
	}

	c.JSON(http.StatusOK, st)
}

// Sync handles POST /api/v1/sync: one delivery sweep, run synchronously.
func (h *EventHandler) Sync(c *gin.Context) {
	if h.syncer == nil {
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "event hub sink is not configured")
		return
	}

	res, err := h.syncer.SweepOnce(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("manual sync failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "sync failed")
		return
	}

	c.JSON(http.StatusOK, res)
}
