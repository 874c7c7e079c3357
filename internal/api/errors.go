package api

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/eventlog/internal/httputil"
	"github.com/persistorai/eventlog/internal/metrics"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternalError  = "internal_error"
	ErrCodeUnavailable    = "unavailable"
)

// respondError writes a standardized JSON error response and counts it.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
