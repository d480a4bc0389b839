package controllers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/services"
)

const maxWebhookBody = 64 << 10

// GET /vendor-response?token=...
func OpenVendorResponse(notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
			return
		}
		link, err := notifier.OpenResponseLink(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// POST /webhooks/vendor-response
// The body is signed with X-Webhook-Signature: sha256=<hex hmac> when a webhook
// secret is configured.
func VendorResponseWebhook(notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		if len(raw) > maxWebhookBody {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		if err := notifier.VerifyWebhookSignature(raw, c.GetHeader("X-Webhook-Signature")); err != nil {
			respondError(c, err)
			return
		}

		var body dto.VendorResponseDTO
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}

		r, err := notifier.IngestResponse(c.Request.Context(), body.Token, body.VendorID, body.RequestID, body.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":           "response recorded",
			"requestNumber":     r.RequestNumber,
			"responsesReceived": r.ResponsesReceived,
		})
	}
}
