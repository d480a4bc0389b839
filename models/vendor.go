package models

import "time"

type VendorStatus string

const (
	VendorStatusActive   VendorStatus = "active"
	VendorStatusInactive VendorStatus = "inactive"
)

// CategoryAll tags a vendor as reachable for every category.
const CategoryAll = "all"

type Vendor struct {
	ID                   int64            `bson:"_id" json:"id" gorm:"primaryKey"`
	UserID               int64            `bson:"userId,omitempty" json:"userId,omitempty" gorm:"index"`
	Name                 string           `bson:"name" json:"name"`
	Email                string           `bson:"email" json:"email" gorm:"uniqueIndex;size:191"`
	Company              string           `bson:"company" json:"company"`
	Phone                string           `bson:"phone" json:"phone"`
	Status               VendorStatus     `bson:"status" json:"status" gorm:"index;size:16"`
	NotificationsEnabled bool             `bson:"notificationsEnabled" json:"notificationsEnabled"`
	ResponseRate         float64          `bson:"responseRate" json:"responseRate"`
	TotalRequests        int              `bson:"totalRequests" json:"totalRequests"`
	TotalResponses       int              `bson:"totalResponses" json:"totalResponses"`
	SuccessfulMatches    int              `bson:"successfulMatches" json:"successfulMatches"`
	Categories           []VendorCategory `bson:"categories" json:"categories" gorm:"foreignKey:VendorID"`
	CreatedAt            time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// Reachable reports whether the vendor may receive broadcasts.
func (v Vendor) Reachable() bool {
	return v.Status == VendorStatusActive && v.NotificationsEnabled
}

type VendorCategory struct {
	ID           int64     `bson:"-" json:"-" gorm:"primaryKey"`
	VendorID     int64     `bson:"-" json:"-" gorm:"uniqueIndex:idx_vendor_category"`
	CategoryName string    `bson:"categoryName" json:"categoryName"`
	CategorySlug string    `bson:"categorySlug" json:"categorySlug" gorm:"uniqueIndex:idx_vendor_category;size:191"`
	IsPrimary    bool      `bson:"isPrimary" json:"isPrimary"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

type NotificationStatus string

const (
	NotificationStatusQueued    NotificationStatus = "queued"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusOpened    NotificationStatus = "opened"
	NotificationStatusResponded NotificationStatus = "responded"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusError     NotificationStatus = "error"
)

// Delivered reports whether the vendor has already been reached for this request.
func (s NotificationStatus) Delivered() bool {
	return s == NotificationStatusSent || s == NotificationStatusOpened || s == NotificationStatusResponded
}

// VendorNotification is unique per (vendor, request).
type VendorNotification struct {
	ID              int64              `bson:"_id" json:"id" gorm:"primaryKey"`
	VendorID        int64              `bson:"vendorId" json:"vendorId" gorm:"uniqueIndex:idx_vendor_request"`
	RequestID       int64              `bson:"requestId" json:"requestId" gorm:"uniqueIndex:idx_vendor_request;index"`
	Status          NotificationStatus `bson:"status" json:"status" gorm:"size:16"`
	TokenID         string             `bson:"tokenId" json:"-" gorm:"size:32"`
	RespondedAt     *time.Time         `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
	ResponseMessage string             `bson:"responseMessage,omitempty" json:"responseMessage,omitempty"`
	ErrorMessage    string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
