package respond

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsPrivate(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "MISSING_FIELDS", "endpoint is required", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error":{"code":"MISSING_FIELDS","message":"endpoint is required"}}`, rec.Body.String())
}

func TestCached(t *testing.T) {
	body := []byte(`[{"id":1}]`)
	etag := `W/"abc"`

	rec := httptest.NewRecorder()
	Cached(rec, httptest.NewRequest(http.MethodGet, "/alerts/visible", nil), body, etag, 30*time.Second, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, etag, rec.Header().Get("ETag"))
	assert.Equal(t, string(body), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/alerts/visible", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	Cached(rec, req, body, etag, 30*time.Second, true)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Body.String())
}
