package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/models"
)

const contextUserKey = "user"

// bearerToken takes the token from "Authorization: Bearer ...", or from the
// access_token query parameter for clients that cannot set headers (EventSource).
func bearerToken(c *gin.Context) string {
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(c.Query("access_token"))
}

// RequireAuth verifies the access token and loads the account it names. The
// stored account is authoritative, so role changes and deletions apply at once.
func (h *APIHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := h.Signer.Parse(raw)
		if err != nil {
			h.Config.Debugf("rejected token on %s: %v", c.FullPath(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		user, err := h.RedisService.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			respondError(c, err, "load account")
			c.Abort()
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
			return
		}
		h.Config.Debugf("%s %s as %s (%s)", c.Request.Method, c.FullPath(), user.Username, user.Role)
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. It must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// currentUser is the account set by RequireAuth, or nil
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
