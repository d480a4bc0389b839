package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/services"
)

// POST /products/search
func SearchProducts(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ProductSearchDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		products, err := chat.SearchProducts(c.Request.Context(), body.Query, body.Type, body.Limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
	}
}
