//go:build integration

package notifications_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/albapepper/mesa-alerts/internal/alert"
	"github.com/albapepper/mesa-alerts/internal/config"
	"github.com/albapepper/mesa-alerts/internal/db"
	"github.com/albapepper/mesa-alerts/internal/notifications"
)

// newStore starts Postgres, applies the schema and returns a store over a
// pool with prepared statements.
func newStore(t *testing.T) (*notifications.Store, *db.Pool) {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("alerts"),
		postgres.WithUsername("alerts"),
		postgres.WithPassword("alerts"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, conn))
	// Idempotent on re-run.
	require.NoError(t, db.Migrate(ctx, conn))
	require.NoError(t, conn.Close(ctx))

	pool, err := db.New(ctx, &config.Config{DatabaseURL: dsn, DBPoolMinConns: 1, DBPoolMaxConns: 4, DBPoolMaxLife: time.Minute})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return notifications.NewStore(pool.Pool), pool
}

func TestStoreAlerts(t *testing.T) {
	store, pool := newStore(t)
	ctx := context.Background()
	require.NoError(t, pool.HealthCheck(ctx))

	repeat := 30
	draft := alert.Draft{
		Title:        "Kitchen closing",
		Content:      "Last orders",
		Translations: map[string]alert.Text{"es": {Title: "Cocina cerrando", Content: "Últimos pedidos"}},
		IsScheduled:  true,
		Days:         []string{"friday", "sat"},
		StartTime:    "22:00",
		EndTime:      "02:00",
		RepeatEvery:  &repeat,
	}
	a, err := draft.Build(time.Now(), time.UTC)
	require.NoError(t, err)
	require.NoError(t, store.CreateAlert(ctx, a))
	require.NotZero(t, a.ID)

	got, err := store.AlertByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "22:00", got.Start.String())
	assert.Equal(t, "02:00", got.End.String())
	assert.Equal(t, []string{"friday", "saturday"}, got.Days.Names())
	assert.Equal(t, "Cocina cerrando", got.Localized("es").Title)
	require.NotNil(t, got.RepeatEvery)
	assert.Equal(t, 30, *got.RepeatEvery)

	// Bookkeeping writes must not change the version.
	next := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateSchedule(ctx, a.ID, &next, nil))
	after, err := store.AlertByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.Equal(got.UpdatedAt))
	require.NotNil(t, after.NextRunAt)
	assert.True(t, after.NextRunAt.Equal(next))

	// Content edits do.
	_, err = pool.Exec(ctx, "UPDATE announcements SET content = 'Kitchen closed' WHERE id = $1", a.ID)
	require.NoError(t, err)
	edited, err := store.AlertByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, edited.UpdatedAt.After(got.UpdatedAt))

	active, err := store.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = store.AlertByID(ctx, 999_999)
	assert.ErrorIs(t, err, notifications.ErrNotFound)
}

func TestStoreSubscriptions(t *testing.T) {
	store, pool := newStore(t)
	ctx := context.Background()

	sub := notifications.Subscription{Endpoint: "https://push.example.com/a", P256dh: "k1", Auth: "a1", Lang: "es"}
	require.NoError(t, store.Upsert(ctx, sub))
	sub.P256dh = "k2"
	require.NoError(t, store.Upsert(ctx, sub))

	subs, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256dh)

	revokedAt := func() time.Time {
		var ts time.Time
		require.NoError(t, pool.QueryRow(ctx,
			"SELECT revoked_at FROM push_subscriptions WHERE endpoint = $1", sub.Endpoint).Scan(&ts))
		return ts
	}
	require.NoError(t, store.Revoke(ctx, sub.Endpoint))
	first := revokedAt()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Revoke(ctx, sub.Endpoint))
	assert.True(t, revokedAt().After(first), "a repeated revoke restamps revoked_at")
	require.NoError(t, store.Revoke(ctx, "https://push.example.com/unknown"))
	subs, err = store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	// Re-subscribing clears the revocation.
	require.NoError(t, store.Upsert(ctx, sub))
	subs, err = store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestStoreLedger(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	e := notifications.Entry{
		Endpoint: "https://push.example.com/a",
		AlertID:  1,
		Version:  time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Bucket:   time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC),
	}
	ok, err := store.TryAdmit(ctx, e)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryAdmit(ctx, e)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.MarkFailed(ctx, e, "410"))

	other := e
	other.Bucket = e.Bucket.Add(10 * time.Minute)
	ok, err = store.TryAdmit(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.MarkSent(ctx, other))

	n, err := store.PruneSends(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDispatchAgainstPostgres(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	a, err := alert.Draft{Title: "Now open", Content: "Come in"}.Build(time.Now(), time.UTC)
	require.NoError(t, err)
	require.NoError(t, store.CreateAlert(ctx, a))
	require.NoError(t, store.Upsert(ctx, notifications.Subscription{Endpoint: "https://push.example.com/a", P256dh: "k", Auth: "a"}))

	sender := senderFunc(func(context.Context, notifications.Subscription, []byte) error { return nil })
	d := notifications.NewDispatcher(store, store, store, sender, nil, notifications.DispatchConfig{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Now()
	first, err := d.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := d.Run(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, second.Sent)
	assert.Zero(t, second.Alerts)
}

type senderFunc func(ctx context.Context, sub notifications.Subscription, payload []byte) error

func (f senderFunc) Send(ctx context.Context, sub notifications.Subscription, payload []byte) error {
	return f(ctx, sub, payload)
}
