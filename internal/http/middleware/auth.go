package middleware

import (
	"net/http"
	"strings"

	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWT.
const (
	KeyUserID = "user_id"
	KeyTgID   = "tg_id"
	KeyRole   = "role"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

// JWT authenticates the request from the Authorization header, or the
// token query parameter for websocket upgrades.
func JWT(auth TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyTgID, claims.TgID)
		c.Set(KeyRole, claims.Role)
		if claims.UserID != 0 {
			c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), claims.UserID))
		}
		c.Next()
	}
}

// RequireRole rejects authenticated callers without the given role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated player id.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(KeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}
