package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authentication is the pass-through middleware used when no API token is
// configured.
func Authentication(c *gin.Context) {
	c.Next()
}

// Bearer rejects requests that do not carry "Authorization: Bearer <token>".
// An empty token disables the check.
func Bearer(token string) gin.HandlerFunc {
	if token == "" {
		return Authentication
	}
	want := []byte(token)
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "UNAUTHORIZED", "message": "missing or invalid bearer token"}})
			return
		}
		c.Next()
	}
}
