// Command api is the Mesa alerts API server.
//
// Usage:
//
//	mesa-api
//	API_PORT=8080 mesa-api

// @title Mesa Alerts API
// @version 1.0.0
// @description Alert dispatch engine: time-windowed alerts delivered as Web Push notifications with per-bucket deduplication.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name Mesa
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/albapepper/mesa-alerts/internal/api"
	"github.com/albapepper/mesa-alerts/internal/api/handler"
	"github.com/albapepper/mesa-alerts/internal/cache"
	"github.com/albapepper/mesa-alerts/internal/config"
	"github.com/albapepper/mesa-alerts/internal/db"
	"github.com/albapepper/mesa-alerts/internal/listener"
	"github.com/albapepper/mesa-alerts/internal/maintenance"
	"github.com/albapepper/mesa-alerts/internal/notifications"

	_ "github.com/albapepper/mesa-alerts/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is empty; /alerts/dispatch will reject every request")
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	store := notifications.NewStore(pool.Pool)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := notifications.NewMetrics(reg)
	if err != nil {
		logger.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled, 5*time.Minute)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Dispatcher (only when VAPID keys are configured)
	deps := handler.Deps{Registry: store, Alerts: store, DB: pool}
	dispatcher, err := newDispatcher(cfg, store, metrics, logger)
	if err != nil {
		logger.Error("Failed to configure dispatcher", "error", err)
		os.Exit(1)
	}
	if dispatcher != nil {
		deps.Dispatcher = dispatcher
		deps.VAPIDKey = cfg.VAPIDPublicKey
		logger.Info("Alert dispatch enabled", "timezone", cfg.Location.String(), "tag_policy", cfg.TagPolicy)
	} else {
		logger.Info("Alert dispatch disabled (no VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY)")
	}

	// Drop cached public responses whenever an announcement changes
	go listener.Start(ctx, cfg.DatabaseURL, func(int64) { appCache.Flush() }, logger)

	// Start maintenance tickers (send log pruning)
	go maintenance.Start(ctx, store, maintenance.Config{
		PruneInterval: cfg.PruneInterval,
		SendRetention: cfg.SendRetention,
	}, logger)

	// Create router
	h := handler.New(deps, appCache, cfg, logger)
	router := api.NewRouter(h, api.RouterConfig{
		CORSAllowOrigins:  cfg.CORSAllowOrigins,
		RateLimitEnabled:  cfg.RateLimitEnabled,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		CronSecret:        cfg.CronSecret,
		Metrics:           reg,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // dispatch passes can take a while
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Mesa Alerts API", "addr", addr, "environment", cfg.Environment)
		if !cfg.IsProduction() {
			logger.Info("API docs", "url", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// newDispatcher builds the dispatcher from config. Returns nil when push is
// not configured.
func newDispatcher(cfg *config.Config, store *notifications.Store, metrics *notifications.Metrics, logger *slog.Logger) (*notifications.Dispatcher, error) {
	if !cfg.PushEnabled() {
		return nil, nil
	}
	sender := notifications.NewWebPushSender(notifications.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}, cfg.PushTTL, cfg.PushTimeout, nil)
	if sender == nil {
		return nil, fmt.Errorf("invalid VAPID configuration")
	}

	policy, err := notifications.ParseTagPolicy(cfg.TagPolicy)
	if err != nil {
		return nil, err
	}

	return notifications.NewDispatcher(store, store, store, sender, metrics, notifications.DispatchConfig{
		Location:    cfg.Location,
		Concurrency: cfg.DispatchConcurrency,
		PushTimeout: cfg.PushTimeout,
		TagPolicy:   policy,
		ClickURL:    cfg.AlertClickURL,
	}, logger), nil
}
