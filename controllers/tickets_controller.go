package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// POST /support/tickets (public)
func CreateSupportTicket(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateTicketDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		t, err := tickets.CreateTicket(c.Request.Context(), services.TicketInput{
			Subject:       body.Subject,
			Message:       body.Message,
			Category:      strings.TrimSpace(body.Category),
			Priority:      models.Priority(strings.ToLower(strings.TrimSpace(body.Priority))),
			UserID:        middleware.UserID(c),
			CustomerName:  body.CustomerName,
			CustomerEmail: body.CustomerEmail,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"ticketNumber": t.TicketNumber,
			"status":       t.Status,
			"message":      "Your support ticket has been created. We will get back to you shortly.",
		})
	}
}

// GET /admin/tickets?page=1&limit=20&status=open,in_progress&priority=&category=&assignedTo=&unassigned=true&q=&from=&to=&order=oldest
func GetTickets(tickets *services.TicketService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := limits.page(c)
		unassigned, err := utils.ParseBoolQuery(c.Query("unassigned"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unassigned flag"})
			return
		}
		f := store.TicketFilter{
			Priority:      models.Priority(strings.TrimSpace(c.Query("priority"))),
			Category:      strings.TrimSpace(c.Query("category")),
			AssignedTo:    utils.ParseInt64Default(c.Query("assignedTo"), 0),
			Unassigned:    unassigned != nil && *unassigned,
			Search:        strings.TrimSpace(c.Query("q")),
			CreatedAfter:  utils.ParseDate(c.Query("from")),
			CreatedBefore: utils.ParseDate(c.Query("to")),
			OldestFirst:   c.Query("order") == "oldest",
		}
		for _, s := range queryList(c, "status") {
			f.Statuses = append(f.Statuses, models.TicketStatus(s))
		}
		items, total, err := tickets.List(c.Request.Context(), f, p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}

// GET /admin/tickets/stats?days=30
func GetTicketStats(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := tickets.Statistics(c.Request.Context(), queryDays(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GET /admin/tickets/:id
func GetTicket(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		t, err := tickets.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// PATCH /admin/tickets/:id
func UpdateTicket(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.UpdateTicketDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		patch := services.TicketPatch{AssignedTo: body.AssignedTo}
		if body.Status != nil {
			st := models.TicketStatus(strings.ToLower(strings.TrimSpace(*body.Status)))
			patch.Status = &st
		}
		if body.Priority != nil {
			pr := models.Priority(strings.ToLower(strings.TrimSpace(*body.Priority)))
			patch.Priority = &pr
		}
		t, err := tickets.UpdateTicket(c.Request.Context(), id, patch, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// POST /admin/tickets/:id/replies
func AddTicketReply(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.TicketReplyDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		typ := strings.ToLower(strings.TrimSpace(body.Type))
		if typ == "" {
			typ = models.HistoryAgent
		}
		t, err := tickets.AddReply(c.Request.Context(), id, typ, body.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// POST /admin/tickets/:id/close
func CloseTicket(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.CloseTicketDTO
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				badRequest(c, err)
				return
			}
		}
		t, err := tickets.CloseTicket(c.Request.Context(), id, body.Resolution, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// GET /admin/tickets/:id/suggested-responses
func GetSuggestedResponses(tickets *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		suggestions, err := tickets.SuggestedResponses(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
	}
}
