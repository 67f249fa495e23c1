package notifications

import (
	"context"
	"fmt"
	"time"
)

// Entry identifies one delivery attempt: a subscriber, an alert version and
// a time bucket. The ledger admits each entry at most once.
type Entry struct {
	Endpoint string
	AlertID  int64
	Version  time.Time // alert updated_at
	Bucket   time.Time
}

// Key is the dedupe key stored alongside the endpoint. Any edit to the alert
// changes Version and therefore every key derived from it.
func (e Entry) Key() string {
	return fmt.Sprintf("%d:%d:%d", e.AlertID, e.Version.UnixMilli(), e.Bucket.Unix())
}

// Ledger records delivery attempts under a uniqueness constraint on
// (endpoint, key). It is the only concurrency control between overlapping
// dispatch passes: the first inserter wins.
type Ledger interface {
	// TryAdmit inserts a pending record. It returns false, nil when the
	// entry was already attempted; that is expected control flow.
	TryAdmit(ctx context.Context, e Entry) (bool, error)
	MarkSent(ctx context.Context, e Entry) error
	MarkFailed(ctx context.Context, e Entry, code string) error
}
