package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/capture"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader is the HTTP header used to propagate the request ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns a fresh server-side UUID to every request. A client
// supplied X-Request-ID is kept as client_request_id but never trusted as
// the canonical id.
//
// Both ids are attached to the request context as ambient values, so
// events captured while serving the request carry them.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		ambient := map[string]any{RequestIDKey: id}

		if clientID := c.GetHeader(RequestIDHeader); clientID != "" {
			log.WithFields(logrus.Fields{
				"request_id":        id,
				"client_request_id": clientID,
			}).Debug("client provided request ID mapped to server ID")
			c.Set("client_request_id", clientID)
			ambient["client_request_id"] = clientID
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(capture.WithAmbient(c.Request.Context(), ambient))
		c.Next()
	}
}
