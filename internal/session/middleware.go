package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextKey = "session"

// Require enforces a bearer token carrying the given role claim. A missing
// token aborts 401, a role mismatch 403. RoleNone accepts any bearer token.
func Require(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		s := FromToken(authz[len("bearer "):])
		if role != RoleNone && s.Role() != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Set(contextKey, s)
		c.Next()
	}
}

// FromContext returns the session attached by Require, or the anonymous
// session when none is set.
func FromContext(c *gin.Context) Session {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Anonymous()
}
