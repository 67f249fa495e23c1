package notifications

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/mesa-alerts/internal/alert"
)

func TestBuildPayloadShape(t *testing.T) {
	a := &alert.Alert{ID: 7, Title: "Kitchen closing", Content: "Last orders in 15 minutes"}
	bucket := time.Date(2026, 10, 16, 21, 30, 0, 0, time.UTC)

	raw, err := json.Marshal(BuildPayload(a, "", bucket, TagReplace, ""))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"title": "Kitchen closing",
		"body": "Last orders in 15 minutes",
		"tag": "alert-7",
		"data": {"url": "/?alert=7"},
		"requireInteraction": true
	}`, string(raw))
}

func TestBuildPayloadLocalized(t *testing.T) {
	a := &alert.Alert{
		ID:      3,
		Title:   "Happy hour",
		Content: "Two for one",
		Translations: map[string]alert.Text{
			"es": {Title: "Hora feliz", Content: "Dos por uno"},
		},
	}

	p := BuildPayload(a, "es-MX", time.Time{}, TagReplace, "https://mesa.example.com/menu")
	assert.Equal(t, "Hora feliz", p.Title)
	assert.Equal(t, "Dos por uno", p.Body)
	assert.Equal(t, "https://mesa.example.com/menu?alert=3", p.Data.URL)

	p = BuildPayload(a, "fr", time.Time{}, TagReplace, "")
	assert.Equal(t, "Happy hour", p.Title)
}

func TestTagPolicy(t *testing.T) {
	bucket := time.Unix(1_792_000_000, 0)

	assert.Equal(t, "alert-9", Tag(9, bucket, TagReplace))
	assert.Equal(t, "alert-9-1792000000", Tag(9, bucket, TagStack))

	p, err := ParseTagPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TagReplace, p)

	p, err = ParseTagPolicy("stack")
	require.NoError(t, err)
	assert.Equal(t, TagStack, p)

	_, err = ParseTagPolicy("merge")
	assert.Error(t, err)
}

func TestAlertURLKeepsQuery(t *testing.T) {
	assert.Equal(t, "/alerts?alert=5&ref=push", alertURL("/alerts?ref=push", 5))
}

func TestEntryKeyChangesWithVersion(t *testing.T) {
	bucket := time.Date(2026, 10, 16, 21, 30, 0, 0, time.UTC)
	v1 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	a := Entry{Endpoint: "e", AlertID: 1, Version: v1, Bucket: bucket}
	b := a
	b.Version = v1.Add(time.Millisecond)
	c := a
	c.Bucket = bucket.Add(30 * time.Minute)

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, a.Key(), Entry{Endpoint: "other", AlertID: 1, Version: v1, Bucket: bucket}.Key())
}
