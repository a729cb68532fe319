// ===========================================
// Health Check Handler
// ===========================================
// Liveness: "Is the process alive?" No dependency checks.
// Readiness: "Can the process handle requests?" Postgres and Redis
// must both answer.
// /health also reports pool usage and the geo breaker state. Geo is
// best-effort, so an open breaker never makes the service unhealthy.
// ===========================================

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"github.com/user/linkpulse/internal/models"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Health(ctx context.Context) error
}

// PoolReporter reports database pool usage.
type PoolReporter interface {
	Stats() models.PoolStats
}

// BreakerReporter reports a circuit breaker's state.
type BreakerReporter interface {
	State() gobreaker.State
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	pool     PoolReporter
	geo      BreakerReporter
	version  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pg Pinger, redis Pinger, version string) *HealthHandler {
	return &HealthHandler{
		postgres: pg,
		redis:    redis,
		version:  version,
	}
}

// WithPoolStats adds pool usage to /health.
func (h *HealthHandler) WithPoolStats(pool PoolReporter) *HealthHandler {
	h.pool = pool
	return h
}

// WithGeo adds the geo lookup breaker state to /health.
func (h *HealthHandler) WithGeo(geo BreakerReporter) *HealthHandler {
	h.geo = geo
	return h
}

// ===========================================
// GET /health
// ===========================================
// Response (200 - healthy, 503 - unhealthy):
//
//	{
//	  "status": "healthy",
//	  "version": "1.0.0",
//	  "services": {
//	    "postgres": "ok",
//	    "redis": "ok"
//	  },
//	  "pool": {"total_conns": 4, "idle_conns": 3, "acquired_conns": 1, "max_conns": 25},
//	  "geo": "closed"
//	}
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{
		"postgres": check(ctx, h.postgres),
		"redis":    check(ctx, h.redis),
	}

	response := models.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Services: services,
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		response.Pool = &stats
	}
	if h.geo != nil {
		response.Geo = h.geo.State().String()
	}
	for _, state := range services {
		if state != "ok" {
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

func check(ctx context.Context, p Pinger) string {
	if err := p.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// ===========================================
// GET /ready
// ===========================================
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.postgres.Health(ctx); err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	if err := h.redis.Health(ctx); err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	c.Status(http.StatusOK)
}

// ===========================================
// GET /live
// ===========================================
func (h *HealthHandler) Live(c *gin.Context) {
	c.Status(http.StatusOK)
}
