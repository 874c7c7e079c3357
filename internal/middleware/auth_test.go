package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/middleware"
)

const testToken = "0123456789abcdef-worker"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantCode   int
	}{
		{"valid token", "Bearer " + testToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "Bearer wrong-token", http.StatusUnauthorized},
		{"no bearer prefix", testToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.TokenAuth(testToken, quietLogger(), nil))
			r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("got %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestTokenAuth_SetsClientID(t *testing.T) {
	var got string
	r := gin.New()
	r.Use(middleware.TokenAuth(testToken, quietLogger(), nil))
	r.GET("/test", func(c *gin.Context) {
		got = c.GetString(middleware.ClientIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+testToken)
	r.ServeHTTP(w, req)

	if got != middleware.ClientID(testToken) {
		t.Fatalf("client id = %q, want %q", got, middleware.ClientID(testToken))
	}
	if !strings.HasPrefix(got, "token-") || strings.Contains(got, testToken) {
		t.Errorf("client id %q must not reveal the token", got)
	}
}

func TestTokenAuth_LocksOutAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guard := middleware.NewLockoutGuard(ctx, quietLogger())

	r := gin.New()
	r.Use(guard.Middleware())
	r.Use(middleware.TokenAuth(testToken, quietLogger(), guard))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(token string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "9.9.9.9:1000"
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := range middleware.LockoutMaxAttempts {
		if code := send("wrong"); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d, want 401", i, code)
		}
	}

	if code := send(testToken); code != http.StatusTooManyRequests {
		t.Fatalf("locked-out client got %d, want 429", code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"abc123", ""},
		{"", ""},
		{"Bearer ", ""},
		{"bearer abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			got := middleware.ExtractBearerToken(c)
			if got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
