package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
)

// Pinger is a named dependency that can report connectivity.
type Pinger struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pingers []Pinger
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewHealthHandler builds a handler over the given dependency pingers.
func NewHealthHandler(pingers []Pinger, metrics *prometheus.AppMetrics, logger logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{pingers: pingers, metrics: metrics, logger: logger.Named("health")}
}

// Liveness reports that the process is up.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness checks every registered dependency. Any failure yields 503 with
// per-dependency detail.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]string, len(h.pingers))
	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			ready = false
			checks[p.Name] = err.Error()
			prometheus.SetHealthCheck(h.metrics, p.Name, false)
			h.logger.Warn("Dependency not ready",
				logging.String("dependency", p.Name), logging.Err(err))
			continue
		}
		checks[p.Name] = "ok"
		prometheus.SetHealthCheck(h.metrics, p.Name, true)
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
