package dto

type LoginDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterUserDTO struct {
	Email            string   `json:"email" binding:"required,email"`
	Password         string   `json:"password" binding:"required,min=8"`
	Role             string   `json:"role" binding:"required"`
	DisplayName      string   `json:"displayName"`
	Phone            string   `json:"phone"`
	CompanyName      string   `json:"companyName"`
	AgentAvailable   bool     `json:"agentAvailable"`
	VendorCategories []string `json:"vendorCategories"`
}
