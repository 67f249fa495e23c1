package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/mesa-alerts/internal/alert"
)

// ErrNotFound is returned when an alert does not exist.
var ErrNotFound = errors.New("not found")

// Store is the Postgres implementation of AlertStore, Ledger and the
// subscription registry. Statements are prepared per connection by the db
// package and referenced by name.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pool whose connections have the db package's prepared
// statements registered.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// Alerts
// --------------------------------------------------------------------------

// ActiveAlerts returns every active announcement of type "alert".
func (s *Store) ActiveAlerts(ctx context.Context) ([]alert.Alert, error) {
	rows, err := s.pool.Query(ctx, "active_alerts")
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AlertByID returns one alert regardless of its active flag.
func (s *Store) AlertByID(ctx context.Context, id int64) (*alert.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, "alert_by_id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAlert inserts a new alert and fills in its id and version.
func (s *Store) CreateAlert(ctx context.Context, a *alert.Alert) error {
	var start, end *string
	if a.Start != nil {
		v := a.Start.String()
		start = &v
	}
	if a.End != nil {
		v := a.End.String()
		end = &v
	}
	translations := a.Translations
	if translations == nil {
		translations = map[string]alert.Text{}
	}

	err := s.pool.QueryRow(ctx, "insert_alert",
		a.Title, a.Content, translations, a.IsActive, a.IsScheduled,
		a.Days.Names(), start, end, a.RepeatEvery, a.NextRunAt,
	).Scan(&a.ID, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// UpdateSchedule stores the bookkeeping cursor. It does not change the
// alert's version.
func (s *Store) UpdateSchedule(ctx context.Context, id int64, nextRunAt, lastSentAt *time.Time) error {
	if _, err := s.pool.Exec(ctx, "update_alert_schedule", id, nextRunAt, lastSentAt); err != nil {
		return fmt.Errorf("update schedule for alert %d: %w", id, err)
	}
	return nil
}

// scanAlert reads the column list shared by the alert statements.
func scanAlert(row pgx.Row) (alert.Alert, error) {
	var (
		a          alert.Alert
		days       []string
		start, end *string
	)
	if err := row.Scan(
		&a.ID, &a.Title, &a.Content, &a.Translations, &a.IsActive, &a.IsScheduled,
		&days, &start, &end, &a.RepeatEvery, &a.NextRunAt, &a.LastSentAt, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan alert: %w", err)
	}

	parsed, err := alert.ParseDays(days)
	if err != nil {
		return a, fmt.Errorf("alert %d: %w", a.ID, err)
	}
	a.Days = parsed
	if start != nil {
		c, err := alert.ParseClock(*start)
		if err != nil {
			return a, fmt.Errorf("alert %d start_time: %w", a.ID, err)
		}
		a.Start = &c
	}
	if end != nil {
		c, err := alert.ParseClock(*end)
		if err != nil {
			return a, fmt.Errorf("alert %d end_time: %w", a.ID, err)
		}
		a.End = &c
	}
	return a, nil
}

// --------------------------------------------------------------------------
// Dedupe ledger
// --------------------------------------------------------------------------

// TryAdmit inserts a pending send log row. ON CONFLICT DO NOTHING turns a
// duplicate into zero affected rows, which means "already attempted".
func (s *Store) TryAdmit(ctx context.Context, e Entry) (bool, error) {
	tag, err := s.pool.Exec(ctx, "ledger_admit", e.Endpoint, e.Key(), e.AlertID, e.Bucket)
	if err != nil {
		return false, fmt.Errorf("admit send: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent marks an admitted entry as delivered.
func (s *Store) MarkSent(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, "ledger_mark", e.Endpoint, e.Key(), StatusSent, nil)
	return err
}

// MarkFailed marks an admitted entry as failed with a diagnostic code.
func (s *Store) MarkFailed(ctx context.Context, e Entry, code string) error {
	_, err := s.pool.Exec(ctx, "ledger_mark", e.Endpoint, e.Key(), StatusFailed, code)
	return err
}

// PruneSends deletes send log rows last touched before cutoff.
func (s *Store) PruneSends(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "ledger_prune", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune send log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --------------------------------------------------------------------------
// Subscription registry
// --------------------------------------------------------------------------

// ListActive returns subscriptions that have not been revoked.
func (s *Store) ListActive(ctx context.Context) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, "subscriptions_active")
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth,
			&sub.Lang, &sub.TZ, &sub.UserAgent, &sub.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Upsert registers or refreshes a subscription and clears any revocation.
func (s *Store) Upsert(ctx context.Context, sub Subscription) error {
	_, err := s.pool.Exec(ctx, "subscription_upsert",
		sub.Endpoint, sub.P256dh, sub.Auth, sub.Lang, sub.TZ, sub.UserAgent)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Revoke marks a subscription inactive. Revoking twice, or revoking an
// unknown endpoint, is not an error.
func (s *Store) Revoke(ctx context.Context, endpoint string) error {
	if _, err := s.pool.Exec(ctx, "subscription_revoke", endpoint); err != nil {
		return fmt.Errorf("revoke subscription: %w", err)
	}
	return nil
}
