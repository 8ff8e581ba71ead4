// Package middleware provides HTTP middleware for the dnsdash REST API,
// including API key authentication, request logging and request metrics.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/dnsdash/internal/api/models"
)

// RequireAPIKey enforces a simple shared-secret API key.
// Clients must send `X-API-Key: <key>`, or satisfy one of the allow checks
// (the dashboard page uses its session cookie).
func RequireAPIKey(expected string, allow ...func(c *gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1 {
			c.Next()
			return
		}
		for _, ok := range allow {
			if ok(c) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
	}
}

// SessionCookieAllowed accepts requests whose cookie names a live session.
func SessionCookieAllowed(cookie string, valid func(id string) bool) func(c *gin.Context) bool {
	return func(c *gin.Context) bool {
		id, err := c.Cookie(cookie)
		return err == nil && valid(id)
	}
}
