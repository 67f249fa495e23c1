// Package db provides a pgxpool-based connection pool with prepared statement
// registration, health checking and schema migration.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/mesa-alerts/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// alertColumns is the column list scanned by notifications.scanAlert.
const alertColumns = `id, title, content, COALESCE(translations, '{}'::jsonb), is_active, is_scheduled,
	COALESCE(schedule_days, '{}'::text[]),
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	repeat_every_minutes, next_run_at, last_sent_at, updated_at`

// Statements returns the named SQL statements prepared on every connection.
func Statements() map[string]string {
	return map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Alerts
		"active_alerts": "SELECT " + alertColumns + " FROM announcements WHERE type = 'alert' AND is_active ORDER BY id",
		"alert_by_id":   "SELECT " + alertColumns + " FROM announcements WHERE type = 'alert' AND id = $1",
		"insert_alert": `INSERT INTO announcements
			(type, title, content, translations, is_active, is_scheduled, schedule_days, start_time, end_time, repeat_every_minutes, next_run_at)
			VALUES ('alert', $1, $2, $3, $4, $5, $6, $7::text::time, $8::text::time, $9, $10)
			RETURNING id, updated_at`,
		"update_alert_schedule": "UPDATE announcements SET next_run_at = $2, last_sent_at = $3 WHERE id = $1",

		// Send log
		"ledger_admit": `INSERT INTO alert_sends (endpoint, dedupe_key, announcement_id, bucket_start, status)
			VALUES ($1, $2, $3, $4, 'pending')
			ON CONFLICT (endpoint, dedupe_key) DO NOTHING`,
		"ledger_mark": `UPDATE alert_sends SET status = $3, error_code = $4, updated_at = NOW()
			WHERE endpoint = $1 AND dedupe_key = $2`,
		"ledger_prune": "DELETE FROM alert_sends WHERE updated_at < $1",

		// Subscriptions
		"subscriptions_active": `SELECT endpoint, p256dh, auth, COALESCE(lang, ''), COALESCE(tz, ''), COALESCE(user_agent, ''), last_seen_at
			FROM push_subscriptions WHERE revoked_at IS NULL ORDER BY created_at`,
		"subscription_upsert": `INSERT INTO push_subscriptions (endpoint, p256dh, auth, lang, tz, user_agent)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
			ON CONFLICT (endpoint) DO UPDATE SET
				p256dh = EXCLUDED.p256dh,
				auth = EXCLUDED.auth,
				lang = EXCLUDED.lang,
				tz = EXCLUDED.tz,
				user_agent = EXCLUDED.user_agent,
				last_seen_at = NOW(),
				revoked_at = NULL`,
		"subscription_revoke": "UPDATE push_subscriptions SET revoked_at = NOW() WHERE endpoint = $1",
	}
}

// registerPreparedStatements registers all statements the API and the CLI
// use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements() {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
