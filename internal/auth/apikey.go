package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Header carries the client API key on every /v1 request.
const Header = "X-API-Key"

// RequireKey returns middleware enforcing the configured API key with a
// constant-time comparison. An empty configured key disables the check, for
// local development.
func RequireKey(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}

	want := []byte(key)
	return func(c *gin.Context) {
		got := c.GetHeader(Header)
		switch {
		case got == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
		default:
			c.Next()
		}
	}
}
