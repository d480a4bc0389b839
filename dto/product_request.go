package dto

// CreateProductRequestDTO is sent as the JSON body, or as the "data" field of a
// multipart form carrying an optional "image" file.
type CreateProductRequestDTO struct {
	Category      string `json:"category"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Priority      string `json:"priority"`
}

// UpdateProductRequestDTO: all fields are optional
type UpdateProductRequestDTO struct {
	Status            *string `json:"status"`
	Priority          *string `json:"priority"`
	Notes             string  `json:"notes"`
	VendorsContacted  *int    `json:"vendorsContacted" binding:"omitempty,min=0"`
	ResponsesReceived *int    `json:"responsesReceived" binding:"omitempty,min=0"`
}

type CompleteProductRequestDTO struct {
	Notes string `json:"notes"`
}

type CancelProductRequestDTO struct {
	Reason string `json:"reason"`
}

type VendorResponseDTO struct {
	Token     string `json:"token" binding:"required"`
	VendorID  int64  `json:"vendorId"`
	RequestID int64  `json:"requestId"`
	Message   string `json:"message" binding:"required"`
}
