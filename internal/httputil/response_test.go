package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/eventlog/internal/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
	}{
		{"with request id", "rid-1"},
		{"without request id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.requestID != "" {
				c.Set("request_id", tt.requestID)
			}

			httputil.RespondError(c, http.StatusTeapot, "brewing", "short and stout")

			if w.Code != http.StatusTeapot {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusTeapot)
			}
			if !c.IsAborted() {
				t.Error("context not aborted")
			}

			var raw map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if raw["code"] != "brewing" || raw["message"] != "short and stout" {
				t.Errorf("body = %v", raw)
			}
			rid, present := raw["request_id"]
			if tt.requestID == "" && present {
				t.Errorf("request_id present without one set: %v", rid)
			}
			if tt.requestID != "" && rid != tt.requestID {
				t.Errorf("request_id = %v, want %q", rid, tt.requestID)
			}
		})
	}
}
