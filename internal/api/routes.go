package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jroosing/dnsdash/internal/api/handlers"
	"github.com/jroosing/dnsdash/internal/api/middleware"
	"github.com/jroosing/dnsdash/internal/config"
	"github.com/jroosing/dnsdash/internal/metrics"

	_ "github.com/jroosing/dnsdash/internal/api/docs" // swagger docs
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config, m *metrics.Metrics) {
	// Swagger UI at /swagger/*
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if m != nil && cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	r.GET("/", h.Index)

	api := r.Group("/api/v1")

	// Optional API key protection. Dashboard pages authenticate with their session cookie.
	if cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey,
			middleware.SessionCookieAllowed(handlers.SessionCookie, h.ValidSession)))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)

	api.GET("/theme", h.GetTheme)
	api.PUT("/theme", h.PutTheme)

	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/close", h.CloseSession)
	api.POST("/sessions/:id/refresh", h.RefreshSession)
	api.PUT("/sessions/:id/auto-refresh", h.SetAutoRefresh)
	api.PUT("/sessions/:id/tab", h.SetTab)
	api.PUT("/sessions/:id/client", h.SelectClient)
	api.PUT("/sessions/:id/domain", h.SelectDomain)
	api.POST("/sessions/:id/search", h.Search)
	api.POST("/sessions/:id/page", h.Page)
	api.PUT("/sessions/:id/theme", h.SetSessionTheme)
	api.GET("/sessions/:id/ws", h.SessionWS)
}
