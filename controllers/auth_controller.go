package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// POST /auth/login
func Login(users store.UserStore, secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}

		user, err := users.GetByEmail(c.Request.Context(), body.Email)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if err := utils.CheckPassword(user.PasswordHash, body.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		accessToken, err := utils.GenerateAccessToken(user.ID, user.Email, string(user.Role), secret, ttl)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": accessToken,
			"expires_in":   int(ttl.Seconds()),
			"user":         user,
		})
	}
}
