package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/eventlog/internal/capture"
	"github.com/persistorai/eventlog/internal/middleware"
)

// Route names recorded as request_route on captured events.
const (
	RouteEventShow  = "events.show"
	RouteEventStats = "events.stats"
	RouteEventSync  = "events.sync"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log            *logrus.Logger
	Store          EventReader
	Syncer         Syncer
	Capture        *capture.HTTPCapture
	Routes         *capture.RouteNames
	APIToken       string
	CORSOrigins    []string
	Version        string
	SinkConfigured bool
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB
	rateLimit   = 20      // requests per second per IP
	rateBurst   = 50
)

func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes mounts the unauthenticated probes and, when a token is
// configured, the authenticated /api/v1 group. Requests to the v1 group are
// captured as http events after authentication so the client is recorded
// as the principal.
func registerRoutes(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	health := NewHealthHandler(deps.Store, deps.Log, deps.Version, deps.SinkConfigured)
	r.GET("/api/health", health.Liveness)
	r.GET("/api/ready", health.Readiness)

	if deps.APIToken == "" {
		deps.Log.Warn("EVENTLOG_API_TOKEN not set; /api/v1 routes disabled")
		return
	}

	events := NewEventHandler(deps.Store, deps.Syncer, deps.Log)
	guard := middleware.NewLockoutGuard(ctx, deps.Log)

	v1 := r.Group("/api/v1")
	v1.Use(guard.Middleware())
	v1.Use(middleware.TokenAuth(deps.APIToken, deps.Log, guard))
	if deps.Capture != nil {
		v1.Use(deps.Capture.Middleware())
	}

	named(deps.Routes, v1, http.MethodGet, "/events/:uuid", RouteEventShow, events.Get)
	named(deps.Routes, v1, http.MethodGet, "/stats", RouteEventStats, events.Stats)
	named(deps.Routes, v1, http.MethodPost, "/sync", RouteEventSync, events.Sync)
}

// named registers a handler and records its route name.
func named(routes *capture.RouteNames, g *gin.RouterGroup, method, path, name string, h gin.HandlerFunc) {
	g.Handle(method, path, h)
	if routes != nil {
		routes.Name(method, g.BasePath()+path, name)
	}
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r, deps)

	return r
}
