package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/mesa-alerts/internal/alert"
)

// AlertStore loads alerts and persists their scheduling bookkeeping.
type AlertStore interface {
	ActiveAlerts(ctx context.Context) ([]alert.Alert, error)
	UpdateSchedule(ctx context.Context, id int64, nextRunAt, lastSentAt *time.Time) error
}

// Targets lists deliverable subscriptions and revokes dead ones.
type Targets interface {
	ListActive(ctx context.Context) ([]Subscription, error)
	Revoke(ctx context.Context, endpoint string) error
}

// DispatchConfig tunes a Dispatcher.
type DispatchConfig struct {
	Location    *time.Location // operating time zone for window math
	Concurrency int            // max in-flight deliveries
	PushTimeout time.Duration  // per-push deadline
	TagPolicy   TagPolicy
	ClickURL    string // base URL opened when the notification is clicked
}

// Dispatcher runs dispatch passes. It is safe for concurrent use; overlapping
// passes are reconciled by the Ledger.
type Dispatcher struct {
	alerts  AlertStore
	targets Targets
	ledger  Ledger
	sender  Sender
	metrics *Metrics
	cfg     DispatchConfig
	logger  *slog.Logger
}

// NewDispatcher wires a Dispatcher. metrics may be nil.
func NewDispatcher(alerts AlertStore, targets Targets, ledger Ledger, sender Sender, metrics *Metrics, cfg DispatchConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = defaultPushTimeout
	}
	if cfg.TagPolicy == "" {
		cfg.TagPolicy = TagReplace
	}
	return &Dispatcher{
		alerts:  alerts,
		targets: targets,
		ledger:  ledger,
		sender:  sender,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

// outcome of a single (alert, subscription) delivery.
type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Run executes one dispatch pass at now. Per-subscription failures are
// counted in the summary; only store failures abort the pass.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()
	logger := d.logger.With("run_id", uuid.NewString())

	summary, err := d.run(ctx, now, logger)
	summary.Duration = time.Since(start)
	d.metrics.observePass(summary, err)

	if err != nil {
		logger.Error("Dispatch pass aborted", "error", err)
		return summary, err
	}
	if summary.Alerts > 0 || summary.Rescheduled > 0 {
		logger.Info("Dispatch pass complete", "summary", summary.String())
	} else {
		logger.Debug("Dispatch pass complete", "summary", summary.String())
	}
	return summary, nil
}

func (d *Dispatcher) run(ctx context.Context, now time.Time, logger *slog.Logger) (Summary, error) {
	var summary Summary

	// 1. Load active alerts and split by window
	alerts, err := d.alerts.ActiveAlerts(ctx)
	if err != nil {
		return summary, fmt.Errorf("load alerts: %w", err)
	}
	summary.Due = len(alerts)

	var visible []*alert.Alert
	for i := range alerts {
		a := &alerts[i]
		if a.IsVisible(now, d.cfg.Location) && !a.Exhausted() {
			visible = append(visible, a)
		}
	}
	summary.Alerts = len(visible)

	// 2. Load targets once per pass
	subs, err := d.targets.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("load subscriptions: %w", err)
	}
	summary.Targets = len(subs)

	// 3. Fan out deliveries
	sentPerAlert := make(map[int64]int, len(visible))
	if len(visible) > 0 && len(subs) > 0 {
		if err := d.deliverAll(ctx, now, visible, subs, &summary, sentPerAlert, logger); err != nil {
			return summary, err
		}
	}

	// 4. Bookkeeping
	writeCtx, cancelWrite := d.writeContext(ctx)
	defer cancelWrite()
	for i := range alerts {
		a := &alerts[i]
		next := a.NextRun(now, d.cfg.Location)
		last := a.LastSentAt
		if sentPerAlert[a.ID] > 0 {
			sentAt := now.UTC()
			last = &sentAt
		}
		if sameInstant(next, a.NextRunAt) && sameInstant(last, a.LastSentAt) {
			continue
		}
		if err := d.alerts.UpdateSchedule(writeCtx, a.ID, next, last); err != nil {
			logger.Warn("Failed to update alert schedule", "alert_id", a.ID, "error", err)
			continue
		}
		summary.Rescheduled++
	}

	return summary, nil
}

func (d *Dispatcher) deliverAll(
	ctx context.Context,
	now time.Time,
	visible []*alert.Alert,
	subs []Subscription,
	summary *Summary,
	sentPerAlert map[int64]int,
	logger *slog.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	var mu sync.Mutex
	for _, a := range visible {
		bucket := a.Bucket(now, d.cfg.Location)
		for _, sub := range subs {
			g.Go(func() error {
				o, revoked, err := d.deliver(gctx, a, bucket, sub, logger)
				if err != nil {
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				switch o {
				case outcomeSent:
					summary.Sent++
					sentPerAlert[a.ID]++
				case outcomeSkipped:
					summary.Skipped++
				case outcomeFailed:
					summary.Failed++
				}
				if revoked {
					summary.Revoked++
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}

// deliver performs one dedupe-gated push. It returns an error only when the
// ledger cannot be written, since delivering without admission would break
// the at-most-once guarantee.
func (d *Dispatcher) deliver(ctx context.Context, a *alert.Alert, bucket time.Time, sub Subscription, logger *slog.Logger) (outcome, bool, error) {
	if err := ctx.Err(); err != nil {
		return outcomeFailed, false, err
	}

	entry := Entry{Endpoint: sub.Endpoint, AlertID: a.ID, Version: a.UpdatedAt, Bucket: bucket}
	admitted, err := d.ledger.TryAdmit(ctx, entry)
	if err != nil {
		return outcomeFailed, false, fmt.Errorf("admit alert %d: %w", a.ID, err)
	}
	if !admitted {
		d.metrics.observeDelivery(outcomeSkipped, "", 0)
		return outcomeSkipped, false, nil
	}

	payload, err := json.Marshal(BuildPayload(a, sub.Lang, bucket, d.cfg.TagPolicy, d.cfg.ClickURL))
	if err != nil {
		return outcomeFailed, false, fmt.Errorf("encode payload for alert %d: %w", a.ID, err)
	}

	// Once admitted, the push and its ledger transition run to completion
	// even if the pass is cancelled, so no entry is left pending.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.PushTimeout)
	start := time.Now()
	sendErr := d.sender.Send(pushCtx, sub, payload)
	took := time.Since(start)
	cancel()

	writeCtx, cancelWrite := d.writeContext(ctx)
	defer cancelWrite()

	if sendErr == nil {
		if err := d.ledger.MarkSent(writeCtx, entry); err != nil {
			logger.Warn("Failed to mark send", "alert_id", a.ID, "error", err)
		}
		d.metrics.observeDelivery(outcomeSent, "", took)
		return outcomeSent, false, nil
	}

	code := FailureCode(sendErr)
	logger.Warn("Push failed",
		"alert_id", a.ID,
		"endpoint", endpointSuffix(sub.Endpoint),
		"code", code,
		"error", sendErr)

	revoked := false
	if IsPermanent(sendErr) {
		if err := d.targets.Revoke(writeCtx, sub.Endpoint); err != nil {
			logger.Warn("Failed to revoke subscription", "endpoint", endpointSuffix(sub.Endpoint), "error", err)
		} else {
			revoked = true
			d.metrics.observeRevocation()
		}
	}
	if err := d.ledger.MarkFailed(writeCtx, entry, code); err != nil {
		logger.Warn("Failed to mark send failure", "alert_id", a.ID, "error", err)
	}
	d.metrics.observeDelivery(outcomeFailed, code, took)
	return outcomeFailed, revoked, nil
}

// writeContext detaches store writes that follow a delivery from the pass's
// cancellation, bounded by writeTimeout.
func (d *Dispatcher) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
