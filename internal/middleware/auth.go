package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ClientIDKey is the gin context key holding the authenticated client id.
const ClientIDKey = "client_id"

// authTimingFloor is the minimum response time for rejected requests.
const authTimingFloor = 50 * time.Millisecond

func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// ClientID derives a stable, non-reversible client id from a token.
func ClientID(token string) string {
	h := sha256.Sum256([]byte(token))
	return "token-" + hex.EncodeToString(h[:6])
}

// TokenAuth authenticates requests carrying "Authorization: Bearer <token>".
// Failures are counted against the client IP when a guard is given.
func TokenAuth(token string, log *logrus.Logger, guard *LockoutGuard) gin.HandlerFunc {
	want := []byte(token)
	id := ClientID(token)

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		got := ExtractBearerToken(c)
		if got == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			log.WithFields(logrus.Fields{
				"client_ip":  c.ClientIP(),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
			}).Warn("authentication failed: invalid token")

			if guard != nil {
				guard.RecordFailure(c.ClientIP())
			}

			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if guard != nil {
			guard.Reset(c.ClientIP())
		}

		c.Set(ClientIDKey, id)
		c.Next()
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
