// Package store declares the repository interfaces shared by the Mongo, SQL and
// in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/princinho/sahoassist/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("precondition failed")

	// ErrContention means an optimistic write kept losing to concurrent writers.
	ErrContention = errors.New("write contention")
)

// Page selects a window of a listing. PerPage <= 0 returns everything.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) Offset() int {
	if p.PerPage <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Store aggregates every repository of one backend.
type Store interface {
	Conversations() ConversationStore
	Requests() RequestStore
	Vendors() VendorStore
	Notifications() NotificationStore
	Tickets() TicketStore
	Users() UserStore
	Sequences() SequenceStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type ConversationFilter struct {
	UserID        int64
	SessionID     string
	Context       models.ChatContext
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

type ConversationStore interface {
	Log(ctx context.Context, c *models.Conversation) error
	List(ctx context.Context, f ConversationFilter, p Page) ([]models.Conversation, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RequestFilter struct {
	Statuses      []models.ProductRequestStatus
	Category      string
	UserID        int64
	Priority      models.Priority
	Search        string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	OldestFirst   bool
}

type RequestStore interface {
	// Create assigns the id and persists the request together with its first activity.
	Create(ctx context.Context, r *models.ProductRequest, created models.RequestActivity) error
	Get(ctx context.Context, id int64) (*models.ProductRequest, error)
	List(ctx context.Context, f RequestFilter, p Page) ([]models.ProductRequest, int64, error)
	// Apply atomically checks the change preconditions, applies it and appends its activities.
	Apply(ctx context.Context, id int64, c RequestChange) (*models.ProductRequest, error)
	Activities(ctx context.Context, id int64) ([]models.RequestActivity, error)
	Delete(ctx context.Context, id int64) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type VendorFilter struct {
	Status   models.VendorStatus
	Category string
	Search   string
}

type VendorStore interface {
	Create(ctx context.Context, v *models.Vendor) error
	Get(ctx context.Context, id int64) (*models.Vendor, error)
	GetByEmail(ctx context.Context, email string) (*models.Vendor, error)
	List(ctx context.Context, f VendorFilter, p Page) ([]models.Vendor, int64, error)
	// Update replaces the profile fields of a vendor. Categories and counters are left untouched.
	Update(ctx context.Context, v *models.Vendor) error
	AddCategory(ctx context.Context, vendorID int64, c models.VendorCategory) error
	// FindByCategory returns reachable vendors tagged with slug or models.CategoryAll, by id.
	FindByCategory(ctx context.Context, slug string) ([]models.Vendor, error)
	// ListReachable returns at most limit reachable vendors, by id.
	ListReachable(ctx context.Context, limit int) ([]models.Vendor, error)
	RecordNotified(ctx context.Context, id int64) error
	RecordResponse(ctx context.Context, id int64) error
}

type NotificationStore interface {
	// Claim reserves the (vendor, request) pair for a send attempt. A new pair, one
	// whose previous attempt failed, or one left queued since before staleBefore is set
	// to queued with tokenID and claimed is true. Otherwise the existing row is returned
	// unchanged and claimed is false. A zero staleBefore never takes over queued rows.
	Claim(ctx context.Context, vendorID, requestID int64, tokenID string, now, staleBefore time.Time) (n *models.VendorNotification, claimed bool, err error)
	SetStatus(ctx context.Context, id int64, status models.NotificationStatus, errMsg string, now time.Time) error
	// MarkOpened moves a sent notification bound to tokenID to opened.
	MarkOpened(ctx context.Context, vendorID, requestID int64, tokenID string, now time.Time) error
	// MarkResponded consumes tokenID. It returns ErrConflict when the token is unknown
	// or already consumed.
	MarkResponded(ctx context.Context, vendorID, requestID int64, tokenID, message string, now time.Time) error
	ListByRequest(ctx context.Context, requestID int64) ([]models.VendorNotification, error)
	ListByVendor(ctx context.Context, vendorID int64, p Page) ([]models.VendorNotification, int64, error)
	DeleteByRequest(ctx context.Context, requestID int64) error
}

type TicketFilter struct {
	Statuses      []models.TicketStatus
	Priority      models.Priority
	Category      string
	AssignedTo    int64
	Unassigned    bool
	Search        string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	OldestFirst   bool
}

type TicketStore interface {
	Create(ctx context.Context, t *models.SupportTicket) error
	Get(ctx context.Context, id int64) (*models.SupportTicket, error)
	List(ctx context.Context, f TicketFilter, p Page) ([]models.SupportTicket, int64, error)
	Apply(ctx context.Context, id int64, c TicketChange) (*models.SupportTicket, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ListByRole returns active users holding role, by id.
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// SequenceStore hands out strictly increasing numbers per key.
type SequenceStore interface {
	Next(ctx context.Context, key string) (int64, error)
}
