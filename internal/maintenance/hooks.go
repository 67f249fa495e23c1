package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner deletes send log rows older than a cutoff.
type Pruner interface {
	PruneSends(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneSendLog removes send log rows last touched more than retention before
// now. Keys only collide within a bucket, so old rows never affect admission.
// Shared by the maintenance ticker and `alerts prune`.
func PruneSendLog(ctx context.Context, pruner Pruner, now time.Time, retention time.Duration, logger *slog.Logger) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	cutoff := now.Add(-retention)

	start := time.Now()
	n, err := pruner.PruneSends(ctx, cutoff)
	dur := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Warn("Prune: failed to purge send log", "cutoff", cutoff, "duration", dur, "error", err)
		return 0, err
	}
	if n > 0 {
		logger.Info("Prune: purged send log rows", "count", n, "cutoff", cutoff, "duration", dur)
	}
	return n, nil
}
