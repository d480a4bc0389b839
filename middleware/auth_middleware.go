package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/utils"
)

// Context keys set by AuthMiddleware.
const (
	KeyUserID = "userID"
	KeyEmail  = "email"
	KeyRole   = "role"
)

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set(KeyUserID, claims.UserID)
	c.Set(KeyEmail, claims.Email)
	c.Set(KeyRole, claims.Role)
}

// AuthMiddleware accepts a bearer access token signed with secret. When roles are
// given, the token's role must be one of them.
func AuthMiddleware(secret string, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := utils.ValidateToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, models.Role(claims.Role)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller on public routes. A missing or invalid token
// leaves the request anonymous.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c); ok {
			if claims, err := utils.ValidateToken(tokenStr, secret); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id, or 0 for guests.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(KeyUserID)
}
