package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementsCoverStore(t *testing.T) {
	stmts := Statements()
	for _, name := range []string{
		"health_check",
		"active_alerts", "alert_by_id", "insert_alert", "update_alert_schedule",
		"ledger_admit", "ledger_mark", "ledger_prune",
		"subscriptions_active", "subscription_upsert", "subscription_revoke",
	} {
		assert.Contains(t, stmts, name)
	}
}

func TestLedgerAdmitIsConflictFree(t *testing.T) {
	assert.Contains(t, Statements()["ledger_admit"], "ON CONFLICT (endpoint, dedupe_key) DO NOTHING")
}

func TestRevokeAlwaysStampsNow(t *testing.T) {
	assert.Equal(t, "UPDATE push_subscriptions SET revoked_at = NOW() WHERE endpoint = $1", Statements()["subscription_revoke"])
}

func TestSchemaEmbedded(t *testing.T) {
	s := Schema()
	for _, table := range []string{"announcements", "push_subscriptions", "alert_sends"} {
		assert.True(t, strings.Contains(s, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
	assert.Contains(t, s, "UNIQUE (endpoint, dedupe_key)")
	assert.Contains(t, s, "repeat_every_minutes >= 10")
	assert.Contains(t, s, "pg_notify('announcements_changed'")
}
