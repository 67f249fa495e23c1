package notifications

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/albapepper/mesa-alerts/internal/alert"
)

// TagPolicy selects how browsers group repeated notifications for an alert.
type TagPolicy string

const (
	// TagReplace reuses one tag per alert so a resend replaces the toast.
	TagReplace TagPolicy = "replace"
	// TagStack varies the tag per bucket so resends stack.
	TagStack TagPolicy = "stack"
)

// ParseTagPolicy accepts "replace" or "stack"; empty means replace.
func ParseTagPolicy(s string) (TagPolicy, error) {
	switch TagPolicy(s) {
	case "", TagReplace:
		return TagReplace, nil
	case TagStack:
		return TagStack, nil
	}
	return "", fmt.Errorf("unknown tag policy %q", s)
}

// Payload is the JSON document delivered to the service worker's push
// handler. Its shape is a compatibility contract with the client.
type Payload struct {
	Title              string      `json:"title"`
	Body               string      `json:"body"`
	Tag                string      `json:"tag"`
	Data               PayloadData `json:"data"`
	RequireInteraction bool        `json:"requireInteraction"`
}

// PayloadData carries the click-through target.
type PayloadData struct {
	URL string `json:"url"`
}

// BuildPayload renders the notification for one subscriber language.
func BuildPayload(a *alert.Alert, lang string, bucket time.Time, policy TagPolicy, clickURL string) Payload {
	text := a.Localized(lang)
	return Payload{
		Title:              text.Title,
		Body:               text.Content,
		Tag:                Tag(a.ID, bucket, policy),
		Data:               PayloadData{URL: alertURL(clickURL, a.ID)},
		RequireInteraction: true,
	}
}

// Tag derives the notification tag from the alert id.
func Tag(alertID int64, bucket time.Time, policy TagPolicy) string {
	if policy == TagStack {
		return fmt.Sprintf("alert-%d-%d", alertID, bucket.Unix())
	}
	return fmt.Sprintf("alert-%d", alertID)
}

// alertURL appends ?alert=<id> to base, keeping any existing query.
func alertURL(base string, alertID int64) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("alert", strconv.FormatInt(alertID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
