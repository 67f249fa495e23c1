// Package notifications delivers alert push notifications to subscribed
// browsers.
//
// Pipeline: load active alerts → filter by window → admit through the dedupe
// ledger → push via Web Push → revoke dead endpoints → update bookkeeping.
// A pass is triggered externally (cron hitting /alerts/dispatch or the
// `alerts dispatch` command); there is no internal dispatch loop.
package notifications

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultConcurrency = 8
	defaultPushTimeout = 10 * time.Second
	defaultPushTTL     = 15 * time.Minute

	// writeTimeout bounds ledger, revocation and bookkeeping writes.
	writeTimeout = 5 * time.Second
)

// Send log statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Subscription is a registered Web Push endpoint.
type Subscription struct {
	Endpoint   string
	P256dh     string
	Auth       string
	Lang       string
	TZ         string
	UserAgent  string
	LastSeenAt time.Time
	RevokedAt  *time.Time
}

// Active reports whether the subscription may receive deliveries.
func (s Subscription) Active() bool { return s.RevokedAt == nil }

// Summary reports the outcome of a dispatch pass.
type Summary struct {
	Due         int `json:"due"`     // active alerts considered
	Alerts      int `json:"alerts"`  // alerts visible this pass
	Targets     int `json:"targets"` // active subscriptions
	Sent        int `json:"sent"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Revoked     int `json:"revoked"`
	Rescheduled int `json:"rescheduled"`

	Duration time.Duration `json:"-"`
}

// String returns a one-line summary for logs.
func (s Summary) String() string {
	return fmt.Sprintf("due=%d alerts=%d targets=%d sent=%d skipped=%d failed=%d revoked=%d rescheduled=%d dur=%s",
		s.Due, s.Alerts, s.Targets, s.Sent, s.Skipped, s.Failed, s.Revoked, s.Rescheduled,
		s.Duration.Round(time.Millisecond))
}
