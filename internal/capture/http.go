package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/config"
	"github.com/persistorai/eventlog/internal/httputil"
	"github.com/persistorai/eventlog/internal/metrics"
	"github.com/persistorai/eventlog/internal/models"
	"github.com/persistorai/eventlog/internal/sanitize"
)

// maxCapturedBody bounds how much of a request body is parsed into
// request_data. Larger bodies are passed through but not recorded.
const maxCapturedBody = 1 << 20

// HTTPCapture records one event per inbound request.
type HTTPCapture struct {
	settings   *config.Holder
	writer     EventWriter
	principals PrincipalResolver
	routes     *RouteNames
	log        *logrus.Logger
}

// NewHTTPCapture creates an HTTPCapture. A nil resolver records every
// request as anonymous.
func NewHTTPCapture(settings *config.Holder, writer EventWriter, principals PrincipalResolver, routes *RouteNames, log *logrus.Logger) *HTTPCapture {
	if principals == nil {
		principals = NoPrincipal
	}

	return &HTTPCapture{
		settings:   settings,
		writer:     writer,
		principals: principals,
		routes:     routes,
		log:        log,
	}
}

// Middleware persists the request event before the handler runs. A
// persistence failure aborts the request with 500.
func (h *HTTPCapture) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Capture(c); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Error("capturing request event")
			_ = c.Error(err) //nolint:errcheck // attaches to gin context.
			httputil.RespondError(c, http.StatusInternalServerError, "capture_failed", "failed to record request")
			return
		}

		c.Next()
	}
}

// Capture builds and stores the event for the current request. It returns
// nil without storing anything when capture is inactive or the route is
// excluded.
func (h *HTTPCapture) Capture(c *gin.Context) error {
	cfg := h.settings.Get()
	if !cfg.Active() {
		metrics.CaptureSkipped.WithLabelValues("disabled").Inc()
		return nil
	}

	route := h.routes.Lookup(c.Request.Method, c.FullPath())
	if route != nil && slices.Contains(cfg.ExcludeRoutes, *route) {
		metrics.CaptureSkipped.WithLabelValues("excluded_route").Inc()
		return nil
	}

	ev := h.build(c, cfg, route)

	if _, err := h.writer.Create(c.Request.Context(), ev); err != nil {
		metrics.CaptureFailures.WithLabelValues(string(models.KindHTTP)).Inc()
		return fmt.Errorf("storing http event: %w", err)
	}

	metrics.EventsCaptured.WithLabelValues(string(models.KindHTTP)).Inc()
	h.log.WithFields(logrus.Fields{
		"uuid":  ev.UUID,
		"route": c.FullPath(),
	}).Debug("http event captured")

	return nil
}

func (h *HTTPCapture) build(c *gin.Context, cfg *config.Config, route *string) *models.Event {
	method := c.Request.Method
	fullURL := requestURL(c.Request)
	ip := c.ClientIP()

	ev := &models.Event{
		Kind:           models.KindHTTP,
		RequestIP:      &ip,
		RequestMethod:  &method,
		RequestURL:     &fullURL,
		RequestRoute:   route,
		RequestHeaders: sanitize.RemoveKeys(flattenHeaders(c.Request.Header), cfg.HeaderDenylist),
		RequestData:    sanitize.RemoveKeys(requestData(c), cfg.DataDenylist),
		Context:        AmbientFrom(c.Request.Context()),
	}

	// gin.Context carries values set by upstream auth middleware.
	ev.SetActor(h.principals.CurrentPrincipal(c))

	return ev
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// flattenHeaders lowercases header names. Single values are stored as a
// string, repeated headers as a list.
func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		out[key] = list
	}
	return out
}

func flattenValues(v url.Values, into map[string]any) {
	for k, vals := range v {
		if len(vals) == 1 {
			into[k] = vals[0]
			continue
		}
		list := make([]any, len(vals))
		for i, s := range vals {
			list[i] = s
		}
		into[k] = list
	}
}

// requestData merges the query string with a JSON or urlencoded body. Body
// keys win. The body is restored for downstream handlers.
func requestData(c *gin.Context) map[string]any {
	data := make(map[string]any)
	flattenValues(c.Request.URL.Query(), data)

	body := peekBody(c.Request)
	if len(body) == 0 {
		return data
	}

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type")) //nolint:errcheck // empty type falls through.

	switch mediaType {
	case "application/json":
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err == nil {
			for k, v := range obj {
				data[k] = v
			}
		}
	case "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(body)); err == nil {
			flattenValues(form, data)
		}
	}

	return data
}

// peekBody reads up to maxCapturedBody bytes and puts the full body back on r.
// It returns nil when the body is larger than the limit.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	head, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil || len(head) > maxCapturedBody {
		return nil
	}

	return head
}
