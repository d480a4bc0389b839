package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/services"
)

// POST /categories/suggest
func SuggestCategories(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CategorySuggestDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": chat.SuggestCategories(c.Request.Context(), body.Query)})
	}
}
