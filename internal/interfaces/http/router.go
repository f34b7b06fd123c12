// Package http wires the gin router and HTTP server of the reportiq API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
	"github.com/medtext/reportiq/internal/interfaces/http/handlers"
	"github.com/medtext/reportiq/internal/interfaces/http/middleware"
)

// RouterConfig aggregates everything the router mounts.
type RouterConfig struct {
	ServerConfig config.ServerConfig

	ReportHandler *handlers.ReportHandler
	HealthHandler *handlers.HealthHandler

	// MetricsHandler serves the Prometheus scrape endpoint. Nil disables
	// /metrics.
	MetricsHandler http.Handler
	Metrics        *prometheus.AppMetrics

	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
	// Limiter enforces RateLimit. Nil disables rate limiting.
	Limiter *middleware.TokenBucketLimiter

	Logger logging.Logger
}

// NewRouter builds the gin engine with the full middleware chain and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.ServerConfig.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter, cfg.RateLimit))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		{
			reports.POST("", cfg.ReportHandler.Upload)
			reports.POST("/text", cfg.ReportHandler.AnalyzeText)
			reports.GET("", cfg.ReportHandler.List)
			reports.GET("/:id", cfg.ReportHandler.Get)
			reports.GET("/:id/summary", cfg.ReportHandler.Summary)
			reports.DELETE("/:id", cfg.ReportHandler.Delete)
		}
	}

	return r
}
