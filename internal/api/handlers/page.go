package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/dnsdash/internal/api/web"
	"github.com/jroosing/dnsdash/internal/session"
	"github.com/jroosing/dnsdash/internal/theme"
)

// Index serves the dashboard page. Each load opens a new session; the theme
// is resolved before the first byte is written so the page never paints in
// the wrong scheme.
func (h *Handler) Index(c *gin.Context) {
	if h.sessions == nil || h.renderer == nil {
		c.String(http.StatusServiceUnavailable, "dashboard unavailable")
		return
	}

	ctx := c.Request.Context()
	pref, err := h.themes.LoadTheme(ctx)
	if err != nil {
		h.logger.Warn("load theme failed, using default", "err", err)
		pref = theme.Default
	}
	hy := theme.Hydrate(pref, hint(c.Request))

	s, err := h.sessions.Create(ctx)
	if err != nil {
		status := sessionStatus(err)
		if errors.Is(err, session.ErrTooManySessions) {
			c.Header("Retry-After", retryAfter)
		}
		c.String(status, "cannot open dashboard: %v", err)
		return
	}
	s.SetTheme(hy.Resolved)

	c.Header("Accept-CH", "Sec-CH-Prefers-Color-Scheme")
	c.Header("Critical-CH", "Sec-CH-Prefers-Color-Scheme")
	c.Header("Vary", "Sec-CH-Prefers-Color-Scheme")
	c.Header("Cache-Control", "no-store")
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, s.ID(), 0, "/", "", c.Request.TLS != nil, true)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)

	if err := h.renderer.Page(c.Writer, web.Page{
		SessionID:  s.ID(),
		View:       s.View(),
		Hydration:  hy,
		StorageKey: theme.StorageKey,
	}); err != nil {
		// Page buffers the document, so nothing has been written yet.
		h.logger.Error("render page failed", "err", err)
		c.String(http.StatusInternalServerError, "render failed")
	}
}
