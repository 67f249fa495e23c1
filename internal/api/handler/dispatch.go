package handler

import (
	"net/http"

	"github.com/albapepper/mesa-alerts/internal/api/respond"
	"github.com/albapepper/mesa-alerts/internal/notifications"
)

// DispatchResponse is the body returned by the dispatch trigger.
type DispatchResponse struct {
	OK bool `json:"ok"`
	notifications.Summary
	Error string `json:"error,omitempty"`
}

// Dispatch runs one dispatch pass. Authorization is enforced by the cron
// middleware before this handler is reached.
// @Summary Run a dispatch pass
// @Description Delivers every visible alert to every active subscription at most once per bucket. Called by an external scheduler with the cron secret.
// @Tags alerts
// @Produce json
// @Param secret query string false "Cron secret (alternative to Authorization: Bearer)"
// @Success 200 {object} DispatchResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} DispatchResponse
// @Failure 503 {object} DispatchResponse
// @Router /alerts/dispatch [get]
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h.deps.Dispatcher == nil {
		respond.Private(w, http.StatusServiceUnavailable, DispatchResponse{
			Error: "push not configured",
		})
		return
	}

	summary, err := h.deps.Dispatcher.Run(r.Context(), h.now())
	if err != nil {
		respond.Private(w, http.StatusInternalServerError, DispatchResponse{
			Summary: summary,
			Error:   err.Error(),
		})
		return
	}
	respond.Private(w, http.StatusOK, DispatchResponse{OK: true, Summary: summary})
}
