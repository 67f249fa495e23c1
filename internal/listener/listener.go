// Package listener provides a Postgres LISTEN/NOTIFY consumer for
// announcement changes. It holds a dedicated pgx connection (not from the
// pool) listening on the `announcements_changed` channel, which the
// announcements trigger fires on every content or schedule edit.
//
// API instances use it to drop cached public responses as soon as an alert is
// edited instead of waiting for the cache TTL.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	Channel          = "announcements_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// ChangeFunc is called with the id of the changed announcement. id is zero
// after a reconnect, when notifications may have been missed.
type ChangeFunc func(id int64)

// Start opens a dedicated connection and listens on the announcements
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, onChange ChangeFunc, logger *slog.Logger) {
	backoff := reconnectBackoff
	connected := false

	for {
		err := listenLoop(ctx, dbURL, onChange, &connected, logger)
		if ctx.Err() != nil {
			logger.Info("Announcement listener stopped (context cancelled)")
			return
		}
		if connected {
			backoff = reconnectBackoff
			connected = false
		}

		logger.Error("Announcement listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, onChange ChangeFunc, connected *bool, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	*connected = true
	logger.Info("Announcement listener connected", "channel", Channel)

	// Anything cached before this session may be stale.
	onChange(0)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		id, err := ParsePayload(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse announcement notification",
				"payload", notification.Payload, "error", err)
			id = 0
		}
		logger.Debug("Announcement changed", "id", id)
		onChange(id)
	}
}

// ParsePayload reads the announcement id sent by the trigger.
func ParsePayload(payload string) (int64, error) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("announcement id %q: %w", payload, err)
	}
	return id, nil
}
