// Package handlers implements the REST API endpoint handlers for dnsdash.
//
// REST API Endpoints:
//
// System:
//   - GET /api/v1/health - Health check status
//   - GET /api/v1/stats - Server statistics (uptime, host and process usage, sessions)
//
// Theme:
//   - GET /api/v1/theme - Stored theme preference
//   - PUT /api/v1/theme - Persist a theme preference
//
// Sessions (one per open dashboard page):
//   - POST /api/v1/sessions - Open a session
//   - GET /api/v1/sessions/:id - Session state and view
//   - DELETE /api/v1/sessions/:id - Close a session
//   - POST /api/v1/sessions/:id/close - Close a session (sendBeacon)
//   - POST /api/v1/sessions/:id/refresh - Run a batch refresh now
//   - PUT /api/v1/sessions/:id/auto-refresh - Change auto-refresh settings
//   - PUT /api/v1/sessions/:id/tab - Switch tab
//   - PUT /api/v1/sessions/:id/client - Select a client
//   - PUT /api/v1/sessions/:id/domain - Select a domain
//   - POST /api/v1/sessions/:id/search - Search domains
//   - POST /api/v1/sessions/:id/page - Move a pager
//   - PUT /api/v1/sessions/:id/theme - Re-render with another theme
//   - GET /api/v1/sessions/:id/ws - WebSocket push of view and counter frames
//
// Authentication:
//
// When an API key is configured every /api/v1 endpoint requires the X-API-Key
// header or the session cookie set by the dashboard page.
//
// @title dnsdash API
// @version 1.0
// @description Per-viewer DNS analytics dashboard sessions backed by a DNS telemetry service.
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jroosing/dnsdash/internal/api/web"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/session"
	"github.com/jroosing/dnsdash/internal/theme"
)

// SessionCookie carries the session id of the dashboard page.
const SessionCookie = "dnsdash_session"

// Deps are the runtime components the handlers use.
type Deps struct {
	Sessions *session.Manager
	Themes   theme.Store
	Renderer *web.Renderer
	// Health checks storage. Nil means always healthy.
	Health func(ctx context.Context) error
}

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	sessions  *session.Manager
	themes    theme.Store
	renderer  *web.Renderer
	health    func(ctx context.Context) error
	logger    *slog.Logger
	startTime time.Time
	upgrader  websocket.Upgrader
}

// New creates a new Handler.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Themes == nil {
		deps.Themes = theme.NewMemoryStore()
	}
	return &Handler{
		cfg:       cfg,
		sessions:  deps.Sessions,
		themes:    deps.Themes,
		renderer:  deps.Renderer,
		health:    deps.Health,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Same-origin pages only; the default check compares Origin and Host.
			CheckOrigin: nil,
		},
	}
}

// Sessions returns the session manager.
func (h *Handler) Sessions() *session.Manager {
	return h.sessions
}

// ValidSession reports whether id names a live session.
func (h *Handler) ValidSession(id string) bool {
	if h.sessions == nil || id == "" {
		return false
	}
	_, err := h.sessions.Get(id)
	return err == nil
}

// hint reads the color scheme client hint of the request.
func hint(r *http.Request) theme.Hint {
	return theme.ParseHint(r.Header.Get("Sec-CH-Prefers-Color-Scheme"))
}
