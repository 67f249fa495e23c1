// Package maintenance runs periodic background tasks as Go tickers.
// The API process is long-running (it already holds the LISTEN connection),
// so housekeeping is driven from Go instead of pg_cron.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PruneInterval time.Duration // Send log pruning
	SendRetention time.Duration // Age after which send log rows are deleted
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PruneInterval: time.Hour,
		SendRetention: 30 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pruner Pruner, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"prune", cfg.PruneInterval,
		"retention", cfg.SendRetention)

	if cfg.PruneInterval > 0 && cfg.SendRetention > 0 {
		t := time.NewTicker(cfg.PruneInterval)
		defer t.Stop()
		go runLoop(ctx, t.C, func() {
			_, _ = PruneSendLog(ctx, pruner, time.Now(), cfg.SendRetention, logger)
		})
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
