package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studydocs-backend/internal/documents"
	"studydocs-backend/internal/services/health"
	"studydocs-backend/internal/shared/config"
	"studydocs-backend/internal/shared/metrics"
	"studydocs-backend/internal/shared/server/middleware"
	"studydocs-backend/internal/shared/server/respond"
	"studydocs-backend/internal/shared/storage/object"
)

// Rate limit groups.
const (
	GroupUpload  = "UPLOAD"
	GroupPolling = "POLLING"
	GroupDefault = "DEFAULT"
)

// RouterDeps holds handlers and stores required by the router.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	Store           object.ObjectStore
	Health          *health.Service
	Limiter         *middleware.RateLimiter
}

// DefaultRateLimitRules returns the per-group token buckets.
func DefaultRateLimitRules() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		GroupUpload:  {Rate: 10.0 / 60.0, Burst: 5},
		GroupPolling: {Rate: 2, Burst: 30},
		GroupDefault: {Rate: 1, Burst: 60},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/api/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	if deps.Store != nil {
		documents.RegisterFileRoutes(r, deps.Config.PublicFilesPath, deps.Store)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Config.Env))
	if deps.Config.RateLimitEnabled {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        DefaultRateLimitRules(),
			DefaultGroup: GroupDefault,
			GroupFor:     groupFor,
			Limiter:      deps.Limiter,
		}))
	}

	registerMeRoutes(api)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "Route not found")
	})

	return r
}

func groupFor(c *gin.Context) string {
	route := c.FullPath()
	switch {
	case c.Request.Method == http.MethodPost && strings.HasSuffix(route, "/documents/upload"):
		return GroupUpload
	case c.Request.Method == http.MethodGet && strings.HasSuffix(route, "/documents/:id"):
		return GroupPolling
	default:
		return GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
