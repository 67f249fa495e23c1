package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/albapepper/mesa-alerts/internal/alert"
	"github.com/albapepper/mesa-alerts/internal/api/respond"
	"github.com/albapepper/mesa-alerts/internal/cache"
)

// VisibleAlert is one entry of the public visible-alerts list.
type VisibleAlert struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Version int64  `json:"version"` // updated_at, unix millis
}

// GetVisibleAlerts returns alerts whose window is open now, localized.
// @Summary Visible alerts
// @Description Returns active alerts visible at the current instant in the operating time zone, localized by the lang query parameter or Accept-Language.
// @Tags alerts
// @Produce json
// @Param lang query string false "Language code, e.g. es"
// @Success 200 {array} VisibleAlert
// @Success 304
// @Failure 500 {object} respond.ErrorResponse
// @Router /alerts/visible [get]
func (h *Handler) GetVisibleAlerts(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	cacheKey := "visible:" + lang
	ttl := h.cfg.VisibleCacheTTL
	if ttl <= 0 {
		ttl = cache.TTLVisibleAlerts
	}

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		respond.Cached(w, r, data, etag, ttl, true)
		return
	}

	alerts, err := h.deps.Alerts.ActiveAlerts(r.Context())
	if err != nil {
		h.logger.Error("Failed to load alerts", "error", err)
		respond.Error(w, http.StatusInternalServerError, "INTERNAL", "Could not load alerts", "")
		return
	}

	now := h.now()
	out := make([]VisibleAlert, 0, len(alerts))
	for i := range alerts {
		a := &alerts[i]
		if !a.IsVisible(now, h.cfg.Location) {
			continue
		}
		text := a.Localized(lang)
		out = append(out, VisibleAlert{
			ID:      a.ID,
			Title:   text.Title,
			Content: text.Content,
			Version: a.UpdatedAt.UnixMilli(),
		})
	}

	raw, err := json.Marshal(out)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "INTERNAL", "Could not encode alerts", "")
		return
	}
	etag := h.cache.Set(cacheKey, raw, ttl)
	respond.Cached(w, r, raw, etag, ttl, false)
}

// requestLang picks ?lang= or the first Accept-Language tag, reduced to its
// base language.
func requestLang(r *http.Request) string {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang, _, _ = strings.Cut(r.Header.Get("Accept-Language"), ",")
		lang, _, _ = strings.Cut(lang, ";")
	}
	return alert.BaseLang(lang)
}
