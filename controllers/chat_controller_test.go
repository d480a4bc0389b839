package controllers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
)

func TestPostChatMessage(t *testing.T) {
	h := newHarness(t)

	t.Run("new session", func(t *testing.T) {
		w := h.do(http.MethodPost, "/chat/messages", gin.H{"message": "hello there"}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		reply := decode[services.ChatReply](t, w)
		assert.NotEmpty(t, reply.Reply)
		assert.NotEmpty(t, reply.SessionID)
		assert.Equal(t, models.ContextGeneral, reply.Context)
	})

	t.Run("order support without model", func(t *testing.T) {
		w := h.do(http.MethodPost, "/chat/messages", gin.H{
			"message":   "where is order 12345?",
			"context":   "order-support",
			"sessionId": "sess-1",
		}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		reply := decode[services.ChatReply](t, w)
		assert.Equal(t, "sess-1", reply.SessionID)
		assert.Contains(t, reply.Reply, "#12345")
	})

	t.Run("site problem without model", func(t *testing.T) {
		w := h.do(http.MethodPost, "/chat/messages", gin.H{"message": "the page is slow", "context": "site-problem"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decode[services.ChatReply](t, w).Reply)
	})

	for _, msg := range []string{"", "   "} {
		w := h.do(http.MethodPost, "/chat/messages", gin.H{"message": msg}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "message %q", msg)
	}

	w := h.do(http.MethodPost, "/chat/messages", gin.H{"message": strings.Repeat("a", 5000)}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodGet, "/admin/conversations?sessionId=sess-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[listBody[models.Conversation]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.ContextOrderSupport, page.Items[0].Context)
	assert.Equal(t, "where is order 12345?", page.Items[0].UserMessage)

	w = h.admin(http.MethodGet, "/admin/conversations/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.ConversationStats](t, w)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.UniqueSessions)
}

func TestUploadChatImage(t *testing.T) {
	h := newHarness(t)

	w := h.postMultipart("/chat/images", "", "photo.png", pngBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	analysis := decode[models.ImageAnalysis](t, w)
	assert.NotEmpty(t, analysis.Description)
	assert.Empty(t, analysis.ImageURL)

	w = h.postMultipart("/chat/images", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchProducts(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/products/search", gin.H{"query": "wireless headphones"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Products []models.Product `json:"products"`
		Count    int              `json:"count"`
	}](t, w)
	require.NotEmpty(t, body.Products)
	assert.Equal(t, "p1", body.Products[0].ID)
	assert.Equal(t, len(body.Products), body.Count)

	w = h.do(http.MethodPost, "/products/search", gin.H{"query": "x", "type": "audio"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/products/search", gin.H{"query": "  "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/products/search", gin.H{"type": "image"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["count"])
}

func TestSuggestCategories(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/categories/suggest", gin.H{"query": "a new phone charger"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cats := decode[map[string][]models.Category](t, w)["categories"]
	require.NotEmpty(t, cats)
	for _, c := range cats {
		assert.NotEmpty(t, c.Slug)
	}

	w = h.do(http.MethodPost, "/categories/suggest", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
