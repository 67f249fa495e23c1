// Package handler provides HTTP handlers for all API endpoints.
// Handlers depend on small interfaces satisfied by the notifications store
// and dispatcher, wired explicitly in cmd/api.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/mesa-alerts/internal/alert"
	"github.com/albapepper/mesa-alerts/internal/api/respond"
	"github.com/albapepper/mesa-alerts/internal/cache"
	"github.com/albapepper/mesa-alerts/internal/config"
	"github.com/albapepper/mesa-alerts/internal/notifications"
)

// Dispatcher runs one dispatch pass.
type Dispatcher interface {
	Run(ctx context.Context, now time.Time) (notifications.Summary, error)
}

// Registry stores browser push subscriptions.
type Registry interface {
	Upsert(ctx context.Context, sub notifications.Subscription) error
	Revoke(ctx context.Context, endpoint string) error
}

// AlertSource lists active alerts for the public endpoint.
type AlertSource interface {
	ActiveAlerts(ctx context.Context) ([]alert.Alert, error)
}

// HealthChecker verifies database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps groups the collaborators a Handler needs. A nil Dispatcher means push
// is not configured and dispatch requests get 503.
type Deps struct {
	Dispatcher Dispatcher
	Registry   Registry
	Alerts     AlertSource
	DB         HealthChecker
	VAPIDKey   string
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	deps   Deps
	cache  *cache.Cache
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Handler with shared dependencies.
func New(deps Deps, c *cache.Cache, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		deps:   deps,
		cache:  c,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and whether Web Push is configured.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Mesa Alerts API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"push":    h.deps.Dispatcher != nil,
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DB.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
