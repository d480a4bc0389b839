package models

import "time"

type ChatContext string

const (
	ContextGeneral       ChatContext = "general"
	ContextProductSearch ChatContext = "product-search"
	ContextOrderSupport  ChatContext = "order-support"
	ContextSiteProblem   ChatContext = "site-problem"
)

// Contexts lists every known chat context.
var Contexts = []ChatContext{ContextGeneral, ContextProductSearch, ContextOrderSupport, ContextSiteProblem}

// ParseChatContext maps unknown or empty values to ContextGeneral.
func ParseChatContext(s string) ChatContext {
	for _, c := range Contexts {
		if string(c) == s {
			return c
		}
	}
	return ContextGeneral
}

type Conversation struct {
	ID          int64       `bson:"_id" json:"id" gorm:"primaryKey"`
	UserID      int64       `bson:"userId" json:"userId" gorm:"index"`
	SessionID   string      `bson:"sessionId" json:"sessionId" gorm:"index;size:64"`
	UserMessage string      `bson:"userMessage" json:"userMessage"`
	AIResponse  string      `bson:"aiResponse" json:"aiResponse"`
	Context     ChatContext `bson:"context" json:"context" gorm:"size:32"`
	IPAddress   string      `bson:"ipAddress" json:"ipAddress" gorm:"size:64"`
	UserAgent   string      `bson:"userAgent" json:"userAgent"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt" gorm:"index"`
}

// ChatTurn is one prior user/assistant exchange sent back as history.
type ChatTurn struct {
	User      string `json:"user"`
	Assistant string `json:"ai"`
}

type ContextCount struct {
	Context ChatContext `bson:"_id" json:"context"`
	Count   int64       `bson:"count" json:"count"`
}

type ConversationStats struct {
	Days           int            `json:"days"`
	Total          int64          `json:"total"`
	UniqueUsers    int64          `json:"uniqueUsers"`
	UniqueSessions int64          `json:"uniqueSessions"`
	ByContext      []ContextCount `json:"byContext"`
}
