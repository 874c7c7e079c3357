// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// requestIDKey mirrors middleware.RequestIDKey without importing it.
const requestIDKey = "request_id"

// ErrorBody is the JSON shape of every error the worker API returns.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError aborts the request with an ErrorBody carrying the request id
// assigned by the RequestID middleware, if any.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(requestIDKey),
	})
}
