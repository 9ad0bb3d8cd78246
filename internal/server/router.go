package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aimd54/component-directory/internal/api/admin"
	"github.com/aimd54/component-directory/internal/api/public"
	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/pkg/logger"
)

// DatabaseChecker reports database health.
type DatabaseChecker interface {
	Health() error
}

// CacheChecker reports cache health.
type CacheChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the handlers and health checks mounted on the router.
type Dependencies struct {
	Public   *public.Handler
	Admin    *admin.Handler
	Database DatabaseChecker
	Cache    CacheChecker
}

// NewRouter creates the gin engine with middleware, health, metrics and API routes.
func NewRouter(cfg *config.Config, deps Dependencies, log *logger.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	r.GET("/health", healthHandler(deps))

	if cfg.Metrics.Prometheus.Enabled {
		path := cfg.Metrics.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	if deps.Public != nil {
		deps.Public.Register(v1)
	}
	if deps.Admin != nil {
		deps.Admin.Register(v1.Group("/admin"))
	}

	return r
}

func healthHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}
		healthy := true

		if deps.Database != nil {
			if err := deps.Database.Health(); err != nil {
				checks["database"] = err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}

		if deps.Cache != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Cache.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}

		c.JSON(status, gin.H{
			"status":    state,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
