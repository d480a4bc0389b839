package dto

import "github.com/princinho/sahoassist/models"

type ChatMessageDTO struct {
	Message   string            `json:"message" binding:"required"`
	Context   string            `json:"context"`
	SessionID string            `json:"sessionId"`
	History   []models.ChatTurn `json:"history"`
}

type ProductSearchDTO struct {
	Query string `json:"query"`
	Type  string `json:"type"` // "text" (default) or "image"
	Limit int    `json:"limit"`
}

type CategorySuggestDTO struct {
	Query string `json:"query" binding:"required"`
}
