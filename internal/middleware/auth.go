package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/utils"
)

// UserIdentity resolves the acting user from the X-User-ID header the bot
// front end attaches. The front end is the identity source; requests without
// it are rejected.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user identity"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// AdminAuth validates the admin session token and checks the bearer is in
// the admin allow-list.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		adminID, err := utils.ValidateAdminToken(strings.TrimPrefix(header, "Bearer "), cfg.JWT.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !cfg.IsAdmin(adminID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not an administrator"})
			return
		}

		c.Set("admin_id", adminID)
		c.Next()
	}
}

// UserID returns the user id set by UserIdentity
func UserID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

// AdminID returns the admin id set by AdminAuth
func AdminID(c *gin.Context) int64 {
	return c.GetInt64("admin_id")
}
