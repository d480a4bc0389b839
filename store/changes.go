package store

import (
	"slices"
	"strings"
	"time"

	"github.com/princinho/sahoassist/models"
)

// RequestChange is a set of field mutations applied to a product request as one unit.
// Nil fields are left untouched.
type RequestChange struct {
	Status            *models.ProductRequestStatus
	Priority          *models.Priority
	AppendNote        string
	VendorsContacted  *int
	ResponsesReceived *int
	IncResponses      int
	CompletedAt       *time.Time
	CancelledAt       *time.Time

	// RequireStatus, when set, makes the change fail with ErrConflict unless the
	// current status is one of these.
	RequireStatus []models.ProductRequestStatus
	Activities    []models.RequestActivity
}

// ApplyTo mutates r in place. It is shared by every backend so they agree on semantics.
func (c RequestChange) ApplyTo(r *models.ProductRequest, now time.Time) error {
	if len(c.RequireStatus) > 0 && !slices.Contains(c.RequireStatus, r.Status) {
		return ErrConflict
	}
	if c.Status != nil {
		r.Status = *c.Status
	}
	if c.Priority != nil {
		r.Priority = *c.Priority
	}
	if note := strings.TrimSpace(c.AppendNote); note != "" {
		if r.Notes == "" {
			r.Notes = note
		} else {
			r.Notes += "\n\n" + note
		}
	}
	if c.VendorsContacted != nil {
		r.VendorsContacted = *c.VendorsContacted
	}
	if c.ResponsesReceived != nil {
		r.ResponsesReceived = *c.ResponsesReceived
	}
	r.ResponsesReceived += c.IncResponses
	if c.CompletedAt != nil {
		r.CompletedAt = c.CompletedAt
	}
	if c.CancelledAt != nil {
		r.CancelledAt = c.CancelledAt
	}
	r.UpdatedAt = now
	r.Version++
	return nil
}

// StampActivities binds the change's activities to a request and time.
func (c RequestChange) StampActivities(requestID int64, now time.Time) []models.RequestActivity {
	out := make([]models.RequestActivity, len(c.Activities))
	for i, a := range c.Activities {
		a.RequestID = requestID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		out[i] = a
	}
	return out
}

// Match reports whether r satisfies the filter.
func (f RequestFilter) Match(r models.ProductRequest) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, r.Category) {
		return false
	}
	if f.UserID > 0 && r.UserID != f.UserID {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !r.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{r.RequestNumber, r.CustomerName, r.CustomerEmail, r.Description}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// TicketChange is a set of field mutations applied to a support ticket as one unit.
type TicketChange struct {
	Status        *models.TicketStatus
	Priority      *models.Priority
	AssignedTo    *int64
	ResolvedAt    *time.Time
	EscalatedAt   *time.Time
	AppendHistory []models.TicketHistoryEntry

	RequireStatus []models.TicketStatus
	// RequirePriorityNot fails the change with ErrConflict when the ticket already has it.
	RequirePriorityNot models.Priority
}

func (c TicketChange) ApplyTo(t *models.SupportTicket, now time.Time) error {
	if len(c.RequireStatus) > 0 && !slices.Contains(c.RequireStatus, t.Status) {
		return ErrConflict
	}
	if c.RequirePriorityNot != "" && t.Priority == c.RequirePriorityNot {
		return ErrConflict
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.AssignedTo != nil {
		t.AssignedTo = *c.AssignedTo
	}
	if c.ResolvedAt != nil {
		t.ResolvedAt = c.ResolvedAt
	}
	if c.EscalatedAt != nil {
		t.EscalatedAt = c.EscalatedAt
	}
	for _, h := range c.AppendHistory {
		if h.Timestamp.IsZero() {
			h.Timestamp = now
		}
		t.ConversationHistory = append(t.ConversationHistory, h)
	}
	t.UpdatedAt = now
	t.Version++
	return nil
}

func (f TicketFilter) Match(t models.SupportTicket) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.AssignedTo > 0 && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Unassigned && t.AssignedTo != 0 {
		return false
	}
	if !f.CreatedAfter.IsZero() && t.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !t.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{t.TicketNumber, t.Subject, t.Message, t.CustomerEmail}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

func (f ConversationFilter) Match(c models.Conversation) bool {
	if f.UserID > 0 && c.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && c.SessionID != f.SessionID {
		return false
	}
	if f.Context != "" && c.Context != f.Context {
		return false
	}
	if !f.CreatedAfter.IsZero() && c.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !c.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// Match reports whether v passes the filter.
func (f VendorFilter) Match(v models.Vendor) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Category != "" && !HasCategory(v, f.Category) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{v.Name, v.Email, v.Company}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// HasCategory reports whether v is tagged with slug.
func HasCategory(v models.Vendor, slug string) bool {
	for _, c := range v.Categories {
		if c.CategorySlug == slug {
			return true
		}
	}
	return false
}

// ReachableFor reports whether v may be broadcast a request in category slug.
func ReachableFor(v models.Vendor, slug string) bool {
	return v.Reachable() && (HasCategory(v, slug) || HasCategory(v, models.CategoryAll))
}
