package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

func requireAdmin(c *gin.Context) bool {
	return c.GetString(middleware.KeyRole) == string(models.RoleAdmin)
}

// POST /admin/users
func CreateUser(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only Admins can open accounts"})
			return
		}

		var body dto.RegisterUserDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		role := models.Role(strings.ToUpper(strings.TrimSpace(body.Role)))
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role", "field": "role"})
			return
		}

		hash, err := utils.HashPassword(body.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}

		now := time.Now().UTC()
		user := models.User{
			Email:            strings.ToLower(strings.TrimSpace(body.Email)),
			DisplayName:      strings.TrimSpace(body.DisplayName),
			Phone:            strings.TrimSpace(body.Phone),
			CompanyName:      strings.TrimSpace(body.CompanyName),
			PasswordHash:     hash,
			Role:             role,
			IsActive:         true,
			AgentAvailable:   role == models.RoleAgent && body.AgentAvailable,
			VendorCategories: body.VendorCategories,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := users.Create(c.Request.Context(), &user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "field": "email"})
				return
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, user)
	}
}
