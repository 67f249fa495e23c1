package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/alerts")
	t.Setenv("OPERATING_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/alerts", cfg.DatabaseURL)
	assert.Equal(t, time.UTC.String(), cfg.Location.String())
	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, "replace", cfg.TagPolicy)
	assert.False(t, cfg.PushEnabled())
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/alerts")
	t.Setenv("OPERATING_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPERATING_TIMEZONE")
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "90s")
	assert.Equal(t, 90*time.Second, envDuration("X_DUR", time.Minute))

	t.Setenv("X_DUR", "45")
	assert.Equal(t, 45*time.Second, envDuration("X_DUR", time.Minute))

	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Minute, envDuration("X_DUR", time.Minute))
}

func TestEnvList(t *testing.T) {
	t.Setenv("X_LIST", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, envList("X_LIST", nil))

	t.Setenv("X_LIST", " , ")
	assert.Equal(t, []string{"z"}, envList("X_LIST", []string{"z"}))
}
