package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"admin-console/internal/sessions"
)

// AuthMiddleware validates the Authorization header against the session
// store and injects the admin identity into the request context. Tokens
// are opaque; the gateway never introspects them.
func AuthMiddleware(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		session, err := store.Get(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		_ = store.Touch(c.Request.Context(), parts[1])

		c.Set("adminID", session.AdminID)
		c.Set("nickname", session.Nickname)
		c.Next()
	}
}
