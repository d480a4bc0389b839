package models

import "time"

type ProductRequestStatus string

const (
	ProductRequestStatusPending    ProductRequestStatus = "pending"
	ProductRequestStatusProcessing ProductRequestStatus = "processing"
	ProductRequestStatusCompleted  ProductRequestStatus = "completed"
	ProductRequestStatusCancelled  ProductRequestStatus = "cancelled"
	ProductRequestStatusAutoClosed ProductRequestStatus = "auto_closed"
)

// IsTerminal reports whether no further transitions or vendor notifications are allowed.
func (s ProductRequestStatus) IsTerminal() bool {
	switch s {
	case ProductRequestStatusCompleted, ProductRequestStatusCancelled, ProductRequestStatusAutoClosed:
		return true
	}
	return false
}

func (s ProductRequestStatus) Valid() bool {
	switch s {
	case ProductRequestStatusPending, ProductRequestStatusProcessing:
		return true
	}
	return s.IsTerminal()
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

type ProductRequest struct {
	ID                int64                `bson:"_id" json:"id" gorm:"primaryKey"`
	RequestNumber     string               `bson:"requestNumber" json:"requestNumber" gorm:"uniqueIndex;size:64"`
	UserID            int64                `bson:"userId" json:"userId" gorm:"index"`
	Category          string               `bson:"category" json:"category" gorm:"index;size:191"`
	Description       string               `bson:"description" json:"description"`
	ImageURL          string               `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CustomerName      string               `bson:"customerName" json:"customerName"`
	CustomerEmail     string               `bson:"customerEmail" json:"customerEmail"`
	CustomerPhone     string               `bson:"customerPhone" json:"customerPhone"`
	Status            ProductRequestStatus `bson:"status" json:"status" gorm:"index;size:32"`
	Priority          Priority             `bson:"priority" json:"priority" gorm:"size:16"`
	VendorsContacted  int                  `bson:"vendorsContacted" json:"vendorsContacted"`
	ResponsesReceived int                  `bson:"responsesReceived" json:"responsesReceived"`
	Notes             string               `bson:"notes" json:"notes"`
	Version           int64                `bson:"version" json:"-"`
	Activity          []RequestActivity    `bson:"activity" json:"-" gorm:"-"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt" gorm:"index"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
	CompletedAt       *time.Time           `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt       *time.Time           `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}

// RequestActivity is one audit-trail entry of a product request.
type RequestActivity struct {
	ID          int64     `bson:"id" json:"id" gorm:"primaryKey"`
	RequestID   int64     `bson:"requestId" json:"requestId" gorm:"index"`
	Action      string    `bson:"action" json:"action" gorm:"size:64"`
	Description string    `bson:"description" json:"description"`
	Actor       string    `bson:"actor" json:"actor" gorm:"size:128"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

func (RequestActivity) TableName() string { return "request_activity" }

// Activity actions.
const (
	ActivityCreated        = "created"
	ActivityUpdated        = "updated"
	ActivityCompleted      = "completed"
	ActivityCancelled      = "cancelled"
	ActivityAutoClosed     = "auto_closed"
	ActivityVendorResponse = "vendor_response"
)

type CategoryCount struct {
	Category string `bson:"_id" json:"category"`
	Count    int64  `bson:"count" json:"count"`
}

// RequestStats summarises requests created within a window.
type RequestStats struct {
	Days                   int             `json:"days"`
	TotalRequests          int64           `json:"totalRequests"`
	TotalVendorsContacted  int64           `json:"totalVendorsContacted"`
	TotalResponses         int64           `json:"totalResponses"`
	AvgVendorsPerRequest   float64         `json:"avgVendorsPerRequest"`
	AvgResponsesPerRequest float64         `json:"avgResponsesPerRequest"`
	Completed              int64           `json:"completed"`
	Pending                int64           `json:"pending"`
	Processing             int64           `json:"processing"`
	Cancelled              int64           `json:"cancelled"`
	AutoClosed             int64           `json:"autoClosed"`
	SuccessRate            float64         `json:"successRate"`
	Categories             []CategoryCount `json:"categories"`
}
