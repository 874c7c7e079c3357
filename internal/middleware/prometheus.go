package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/eventlog/internal/metrics"
)

// unmatchedPath labels requests that hit no registered route.
const unmatchedPath = "unmatched"

// PrometheusMiddleware records HTTP request duration and count, labelled by
// route pattern rather than raw path.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
