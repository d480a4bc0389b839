package dto

type CreateTicketDTO struct {
	Subject       string `json:"subject"`
	Message       string `json:"message" binding:"required"`
	Category      string `json:"category"`
	Priority      string `json:"priority"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

type UpdateTicketDTO struct {
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	AssignedTo *int64  `json:"assignedTo"`
}

type TicketReplyDTO struct {
	Type    string `json:"type"` // customer, agent or system; defaults to agent
	Message string `json:"message" binding:"required"`
}

type CloseTicketDTO struct {
	Resolution string `json:"resolution"`
}
