package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/dnsdash/internal/api/models"
	"github.com/jroosing/dnsdash/internal/dashboard"
	"github.com/jroosing/dnsdash/internal/session"
	"github.com/jroosing/dnsdash/internal/theme"
)

// sessionStatus maps session and dashboard errors to HTTP status codes.
func sessionStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, dashboard.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrInvalidInterval),
		errors.Is(err, dashboard.ErrInvalidTab),
		errors.Is(err, session.ErrInvalidPane),
		errors.Is(err, theme.ErrInvalidPreference):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrTooManySessions), errors.Is(err, session.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// retryAfter is the back-off hint sent when the session cap is reached.
const retryAfter = "30"

func (h *Handler) sessionError(c *gin.Context, err error) {
	status := sessionStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("session request failed", "path", c.FullPath(), "err", err)
	}
	if errors.Is(err, session.ErrTooManySessions) {
		c.Header("Retry-After", retryAfter)
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

// lookup resolves the :id path parameter, writing a 404 when unknown.
func (h *Handler) lookup(c *gin.Context) (*session.Session, bool) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "sessions unavailable"})
		return nil, false
	}
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return nil, false
	}
	return s, true
}

func sessionResponse(s *session.Session) models.SessionResponse {
	return models.SessionResponse{
		ID:        s.ID(),
		CreatedAt: s.CreatedAt(),
		State:     s.Snapshot(),
		View:      s.View(),
		Refresh:   s.RefreshStatus(),
	}
}

// bind decodes the JSON body into req, writing a 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// CreateSession godoc
// @Summary Open a session
// @Description Opens a dashboard session and starts loading its data
// @Tags sessions
// @Produce json
// @Success 201 {object} models.SessionResponse
// @Failure 503 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "sessions unavailable"})
		return
	}
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}
	if p, err := h.themes.LoadTheme(c.Request.Context()); err == nil {
		s.SetTheme(theme.Hydrate(p, hint(c.Request)).Resolved)
	}
	c.JSON(http.StatusCreated, sessionResponse(s))
}

// GetSession godoc
// @Summary Get a session
// @Description Returns the dashboard state, view and refresh schedule of a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// DeleteSession godoc
// @Summary Close a session
// @Description Stops auto refresh, discards in-flight responses and disconnects listeners
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id} [delete]
func (h *Handler) DeleteSession(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "sessions unavailable"})
		return
	}
	if err := h.sessions.Close(c.Param("id")); err != nil {
		h.sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CloseSession godoc
// @Summary Close a session (beacon)
// @Description Same as DELETE, as a POST so navigator.sendBeacon can call it on page hide. Unknown ids are ignored.
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id}/close [post]
func (h *Handler) CloseSession(c *gin.Context) {
	if h.sessions != nil {
		_ = h.sessions.Close(c.Param("id"))
	}
	c.Status(http.StatusNoContent)
}

// RefreshSession godoc
// @Summary Refresh now
// @Description Runs a full batch refresh. Returns 409 when one is already in flight.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/refresh [post]
func (h *Handler) RefreshSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// SetAutoRefresh godoc
// @Summary Change auto refresh
// @Description Enables or disables auto refresh. The interval must be one of 5, 10, 30, 60 or 300 seconds.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.AutoRefreshRequest true "Settings"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/auto-refresh [put]
func (h *Handler) SetAutoRefresh(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.AutoRefreshRequest
	if !bind(c, &req) {
		return
	}
	if err := s.SetAutoRefresh(req.Enabled, req.IntervalSeconds); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// SetTab godoc
// @Summary Switch tab
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.TabRequest true "Tab"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/tab [put]
func (h *Handler) SetTab(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.TabRequest
	if !bind(c, &req) {
		return
	}
	if err := s.SetTab(req.Tab); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// SelectClient godoc
// @Summary Select a client
// @Description Shows the client's queries from page 1. An empty client clears the selection.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ClientRequest true "Client"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/client [put]
func (h *Handler) SelectClient(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.ClientRequest
	if !bind(c, &req) {
		return
	}
	if err := s.SelectClient(c.Request.Context(), req.Client); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// SelectDomain godoc
// @Summary Select a domain
// @Description Shows the clients that queried the domain from page 1. An empty domain clears the selection.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.DomainRequest true "Domain"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/domain [put]
func (h *Handler) SelectDomain(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.DomainRequest
	if !bind(c, &req) {
		return
	}
	if err := s.SelectDomain(c.Request.Context(), req.Domain); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// Search godoc
// @Summary Search domains
// @Description Partial domain search with live resolution. An empty term clears the results without a backend request.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.SearchRequest true "Term"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/search [post]
func (h *Handler) Search(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.SearchRequest
	if !bind(c, &req) {
		return
	}
	if err := s.Search(c.Request.Context(), req.Term); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// Page godoc
// @Summary Move a pager
// @Description Moves the client, domain, search or queries pager. Previous from page 1 is a no-op; paging search while it is in flight returns 409.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.PageRequest true "Pager"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/page [post]
func (h *Handler) Page(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.PageRequest
	if !bind(c, &req) {
		return
	}
	if err := s.Page(c.Request.Context(), req.Pane, req.Direction); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// SetSessionTheme godoc
// @Summary Re-render a session with a theme
// @Description Switches the theme the session renders pushed HTML with. Does not persist the preference.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ThemeRequest true "Theme"
// @Success 200 {object} models.ThemeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/theme [put]
func (h *Handler) SetSessionTheme(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.ThemeRequest
	if !bind(c, &req) {
		return
	}
	p, err := theme.Parse(req.Theme)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	hy := theme.Hydrate(p, hint(c.Request))
	s.SetTheme(hy.Resolved)
	c.JSON(http.StatusOK, models.ThemeResponse{Theme: string(hy.Preference), Resolved: string(hy.Resolved)})
}
