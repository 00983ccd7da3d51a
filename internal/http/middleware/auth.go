// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the request identity. A valid Bearer session token
// sets "userID" and "role" in the Gin context; without a configured signing
// secret the middleware degrades to the X-User-ID header, which keeps local
// development and tests free of token plumbing.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amoria-app/backend/internal/auth"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyRole   = "role"
)

// Authenticator verifies session tokens and populates the request identity.
type Authenticator struct {
	// Minter verifies tokens; nil enables the header fallback only.
	Minter *auth.Minter
}

// Handler resolves the identity without rejecting anonymous requests.
// Route groups that require authentication add RequireUser after it.
func (a *Authenticator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" && a.Minter != nil {
			claims, err := a.Minter.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get("X-Request-ID"),
					"code":       "unauthorized",
					"message":    "invalid session token",
				})
				return
			}
			c.Set(ctxKeyUserID, claims.Subject)
			c.Set(ctxKeyRole, claims.Role)
			c.Next()
			return
		}

		if a.Minter == nil {
			if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
				c.Set(ctxKeyUserID, h)
			}
		}
		c.Next()
	}
}

// RequireUser aborts with 401 when no identity was resolved.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v, ok := c.Get(ctxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "unauthorized",
			"message":    "authentication required",
		})
	}
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
