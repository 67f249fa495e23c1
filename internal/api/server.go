package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/mesa-alerts/internal/api/handler"
)

// RouterConfig carries the settings NewRouter needs beyond the handler.
type RouterConfig struct {
	CORSAllowOrigins  []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CronSecret        string
	Metrics           prometheus.Gatherer // nil disables /metrics
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Accept-Language", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Dispatch trigger: secret-gated, exempt from rate limiting
	r.Group(func(r chi.Router) {
		r.Use(CronAuthMiddleware(cfg.CronSecret))
		r.Get("/alerts/dispatch", h.Dispatch)
		r.Post("/alerts/dispatch", h.Dispatch)
	})

	// Public browser endpoints
	r.Group(func(r chi.Router) {
		if cfg.RateLimitEnabled {
			r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Get("/alerts/visible", h.GetVisibleAlerts)
		r.Get("/push/vapid-public-key", h.VAPIDPublicKey)
		r.Post("/push/subscribe", h.Subscribe)
		r.Post("/push/unsubscribe", h.Unsubscribe)
	})

	return r
}
