package dto

type CreateVendorDTO struct {
	UserID     int64    `json:"userId"`
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email" binding:"required,email"`
	Company    string   `json:"company"`
	Phone      string   `json:"phone"`
	Categories []string `json:"categories"`
}

// UpdateVendorDTO: all fields are optional pointers
type UpdateVendorDTO struct {
	Name                 *string `json:"name"`
	Company              *string `json:"company"`
	Phone                *string `json:"phone"`
	Status               *string `json:"status"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
}

type AddVendorCategoryDTO struct {
	Name    string `json:"name" binding:"required"`
	Primary bool   `json:"primary"`
}
