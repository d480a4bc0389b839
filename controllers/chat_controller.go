package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// POST /chat/messages
func PostChatMessage(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ChatMessageDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		reply, err := chat.PostMessage(c.Request.Context(), services.ChatInput{
			Message:   body.Message,
			Context:   body.Context,
			History:   body.History,
			SessionID: body.SessionID,
			UserID:    middleware.UserID(c),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}

// POST /chat/images
// multipart/form-data:
//   - image: required file (jpg/png/webp/gif)
func UploadChatImage(chat *services.ChatService, images *utils.FileValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
			return
		}
		data, mimeType, err := images.ReadFile(file)
		if err != nil {
			badRequest(c, err)
			return
		}
		analysis, err := chat.UploadImage(c.Request.Context(), data, mimeType)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

// GET /admin/conversations?page=1&limit=20&sessionId=...&context=order-support&userId=&from=&to=
func GetConversations(chat *services.ChatService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := limits.page(c)
		f := store.ConversationFilter{
			UserID:        utils.ParseInt64Default(c.Query("userId"), 0),
			SessionID:     strings.TrimSpace(c.Query("sessionId")),
			Context:       models.ChatContext(strings.TrimSpace(c.Query("context"))),
			CreatedAfter:  utils.ParseDate(c.Query("from")),
			CreatedBefore: utils.ParseDate(c.Query("to")),
		}
		items, total, err := chat.Conversations(c.Request.Context(), f, p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}

// GET /admin/conversations/stats?days=30
func GetConversationStats(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := chat.ConversationStats(c.Request.Context(), queryDays(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
