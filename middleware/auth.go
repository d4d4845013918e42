package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	"github.com/gin-gonic/gin"
)

const ProfileIDKey = "profile_id"

// Auth validates the Bearer JWT token and checks the session cache.
// The authenticated profile id is stored in the gin context; handlers read
// it with GetProfileID, so the acting identity is always explicit.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// Check session still valid in cache.
		sessionKey := "session:" + tokenStr
		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := c.Exists(cacheCtx, sessionKey)
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(ProfileIDKey, claims.ProfileID)
		ctx.Next()
	}
}

// GetProfileID retrieves the authenticated profile ID from the Gin context.
// Returns 0 when no profile is authenticated.
func GetProfileID(c *gin.Context) int64 {
	if v, exists := c.Get(ProfileIDKey); exists {
		return v.(int64)
	}
	return 0
}
