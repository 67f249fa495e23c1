package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/albapepper/mesa-alerts/internal/api/respond"
	"github.com/albapepper/mesa-alerts/internal/notifications"
	"github.com/albapepper/mesa-alerts/internal/validate"
)

const maxBodyBytes = 16 << 10

// SubscribeRequest is the PushSubscription JSON a browser posts, plus
// optional locale metadata.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=2048"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required,max=256"`
		Auth   string `json:"auth" validate:"required,max=128"`
	} `json:"keys"`
	Lang      string `json:"lang,omitempty" validate:"omitempty,max=35"`
	TZ        string `json:"tz,omitempty" validate:"omitempty,max=64"`
	UserAgent string `json:"user_agent,omitempty"`
}

// UnsubscribeRequest identifies the subscription to revoke.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Subscribe registers or refreshes a browser push subscription.
// @Summary Register a push subscription
// @Description Upserts the subscription keyed by endpoint and clears any previous revocation.
// @Tags push
// @Accept json
// @Produce json
// @Param body body SubscribeRequest true "PushSubscription"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /push/subscribe [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, "MISSING_FIELDS", "endpoint and keys are required", err.Error())
		return
	}

	ua := req.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	sub := notifications.Subscription{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		Lang:      strings.ToLower(req.Lang),
		TZ:        req.TZ,
		UserAgent: truncate(ua, 512),
	}
	if err := h.deps.Registry.Upsert(r.Context(), sub); err != nil {
		h.logger.Error("Failed to store subscription", "error", err)
		respond.Error(w, http.StatusInternalServerError, "INTERNAL", "Could not store subscription", "")
		return
	}

	respond.Private(w, http.StatusOK, map[string]bool{"ok": true})
}

// Unsubscribe revokes a subscription. Unknown endpoints succeed.
// @Summary Revoke a push subscription
// @Tags push
// @Accept json
// @Produce json
// @Param body body UnsubscribeRequest true "Endpoint to revoke"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /push/unsubscribe [post]
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, "MISSING_FIELDS", "endpoint is required", err.Error())
		return
	}

	if err := h.deps.Registry.Revoke(r.Context(), req.Endpoint); err != nil {
		h.logger.Error("Failed to revoke subscription", "error", err)
		respond.Error(w, http.StatusInternalServerError, "INTERNAL", "Could not revoke subscription", "")
		return
	}

	respond.Private(w, http.StatusOK, map[string]bool{"ok": true})
}

// VAPIDPublicKey returns the application server key browsers subscribe with.
// @Summary VAPID public key
// @Tags push
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /push/vapid-public-key [get]
func (h *Handler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.deps.VAPIDKey == "" {
		respond.Error(w, http.StatusServiceUnavailable, "PUSH_DISABLED", "Web Push is not configured", "")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"publicKey": h.deps.VAPIDKey})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return false
	}
	return true
}

// truncate caps s at n bytes without splitting a rune.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
