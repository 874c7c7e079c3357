package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/capture"
	"github.com/persistorai/eventlog/internal/middleware"
	"github.com/persistorai/eventlog/internal/models"
)

// clientPrincipalType is the principal type recorded for token clients.
const clientPrincipalType = "api_client"

// ClientPrincipal resolves the authenticated worker API client. It expects
// the gin context as ctx, as HTTP capture passes it.
var ClientPrincipal = capture.PrincipalFunc(func(ctx context.Context) *models.Principal {
	id, ok := ctx.Value(middleware.ClientIDKey).(string)
	if !ok || id == "" {
		return nil
	}

	return &models.Principal{Type: clientPrincipalType, ID: id}
})

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		if cid := c.GetString(middleware.ClientIDKey); cid != "" {
			fields["client_id"] = cid
		}
		log.WithFields(fields).Info("request")
	}
}
