package models

import "time"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleAgent    Role = "AGENT"
	RoleVendor   Role = "VENDOR"
	RoleCustomer Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleVendor, RoleCustomer:
		return true
	}
	return false
}

type User struct {
	ID               int64     `bson:"_id" json:"id" gorm:"primaryKey"`
	Email            string    `bson:"email" json:"email" gorm:"uniqueIndex;size:191"`
	DisplayName      string    `bson:"displayName" json:"displayName"`
	Phone            string    `bson:"phone" json:"phone"`
	CompanyName      string    `bson:"companyName,omitempty" json:"companyName,omitempty"`
	PasswordHash     string    `bson:"passwordHash" json:"-"` // never expose
	Role             Role      `bson:"role" json:"role" gorm:"index;size:16"`
	IsActive         bool      `bson:"isActive" json:"isActive"`
	AgentAvailable   bool      `bson:"agentAvailable" json:"agentAvailable"`
	VendorCategories []string  `bson:"vendorCategories,omitempty" json:"vendorCategories,omitempty" gorm:"serializer:json"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}
