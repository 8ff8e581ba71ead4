package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/jroosing/dnsdash/internal/api/models"
	"github.com/jroosing/dnsdash/internal/api/web"
)

// MountStatic serves the embedded CSS and JS under /static and answers
// unmatched routes with 404 (JSON under /api).
func MountStatic(r *gin.Engine, logger *slog.Logger) {
	fs, err := web.Static()
	if err != nil {
		// The assets are compiled in; this only fails on a broken build.
		panic("failed to get embedded static filesystem: " + err.Error())
	}
	r.Use(static.Serve("/static", fs))

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
			return
		}
		logger.Debug("no route", "path", c.Request.URL.Path)
		c.String(http.StatusNotFound, "404 page not found")
	})
}
