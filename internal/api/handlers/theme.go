package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/dnsdash/internal/api/models"
	"github.com/jroosing/dnsdash/internal/theme"
)

// GetTheme godoc
// @Summary Get theme preference
// @Description Returns the stored theme preference and how it resolves for this request
// @Tags theme
// @Produce json
// @Success 200 {object} models.ThemeResponse
// @Failure 500 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /theme [get]
func (h *Handler) GetTheme(c *gin.Context) {
	p, err := h.themes.LoadTheme(c.Request.Context())
	if err != nil {
		h.logger.Error("load theme failed", "err", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load theme"})
		return
	}
	hy := theme.Hydrate(p, hint(c.Request))
	c.JSON(http.StatusOK, models.ThemeResponse{Theme: string(hy.Preference), Resolved: string(hy.Resolved)})
}

// PutTheme godoc
// @Summary Set theme preference
// @Description Persists light, dark or system
// @Tags theme
// @Accept json
// @Produce json
// @Param request body models.ThemeRequest true "Theme"
// @Success 200 {object} models.ThemeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /theme [put]
func (h *Handler) PutTheme(c *gin.Context) {
	var req models.ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	p, err := theme.Parse(req.Theme)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.themes.SaveTheme(c.Request.Context(), p); err != nil {
		h.logger.Error("save theme failed", "err", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save theme"})
		return
	}
	hy := theme.Hydrate(p, hint(c.Request))
	c.JSON(http.StatusOK, models.ThemeResponse{Theme: string(hy.Preference), Resolved: string(hy.Resolved)})
}
