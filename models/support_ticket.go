package models

import "time"

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

func (s TicketStatus) IsFinal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Ticket categories.
const (
	TicketCategoryLogin       = "login"
	TicketCategoryPayment     = "payment"
	TicketCategoryPageError   = "page_error"
	TicketCategoryPerformance = "performance"
	TicketCategoryGeneral     = "general"
	TicketCategoryOrder       = "order"
)

// History entry types.
const (
	HistoryCustomer   = "customer"
	HistoryAgent      = "agent"
	HistorySystem     = "system"
	HistoryResolution = "resolution"
)

type TicketHistoryEntry struct {
	Type      string    `bson:"type" json:"type"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type SupportTicket struct {
	ID                  int64                `bson:"_id" json:"id" gorm:"primaryKey"`
	TicketNumber        string               `bson:"ticketNumber" json:"ticketNumber" gorm:"uniqueIndex;size:64"`
	UserID              int64                `bson:"userId" json:"userId" gorm:"index"`
	CustomerName        string               `bson:"customerName" json:"customerName"`
	CustomerEmail       string               `bson:"customerEmail" json:"customerEmail"`
	Subject             string               `bson:"subject" json:"subject"`
	Message             string               `bson:"message" json:"message"`
	Category            string               `bson:"category" json:"category" gorm:"size:32"`
	Priority            Priority             `bson:"priority" json:"priority" gorm:"size:16"`
	Status              TicketStatus         `bson:"status" json:"status" gorm:"index;size:16"`
	AssignedTo          int64                `bson:"assignedTo" json:"assignedTo,omitempty" gorm:"index"`
	ConversationHistory []TicketHistoryEntry `bson:"conversationHistory" json:"conversationHistory" gorm:"serializer:json"`
	Version             int64                `bson:"version" json:"-"`
	CreatedAt           time.Time            `bson:"createdAt" json:"createdAt" gorm:"index"`
	UpdatedAt           time.Time            `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt          *time.Time           `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	EscalatedAt         *time.Time           `bson:"escalatedAt,omitempty" json:"escalatedAt,omitempty"`
}

// SLAHours is the first-response target for a priority.
func SLAHours(p Priority) int {
	switch p {
	case PriorityHigh:
		return 4
	case PriorityLow:
		return 48
	default:
		return 24
	}
}

type TicketStats struct {
	Days       int              `json:"days"`
	Total      int64            `json:"total"`
	Open       int64            `json:"open"`
	InProgress int64            `json:"inProgress"`
	Resolved   int64            `json:"resolved"`
	Closed     int64            `json:"closed"`
	Escalated  int64            `json:"escalated"`
	ByCategory map[string]int64 `json:"byCategory"`
}
