// Package respond writes the API's JSON responses.
//
// Public reads go through Cached, which owns ETag revalidation. Everything
// else (dispatch results, subscription writes, errors) is written with
// Private and never stored by browsers or proxies.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albapepper/mesa-alerts/internal/cache"
)

// ErrorBody carries a machine-readable code with a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the error envelope every endpoint uses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Private encodes v with Cache-Control: no-store.
func Private(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	JSON(w, status, v)
}

// Error writes an ErrorResponse. detail may be empty.
func Error(w http.ResponseWriter, status int, code, message, detail string) {
	Private(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Detail: detail}})
}

// Cached serves pre-encoded JSON under etag, answering 304 when the client
// already holds it. hit reports whether body came from the response cache.
func Cached(w http.ResponseWriter, r *http.Request, body []byte, etag string, ttl time.Duration, hit bool) {
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding, Accept-Language")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
	if hit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
