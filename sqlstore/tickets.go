package sqlstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

var finalTicketStatuses = []models.TicketStatus{models.TicketStatusResolved, models.TicketStatusClosed}

var ticketColumns = []string{
	"status", "priority", "assigned_to", "resolved_at", "escalated_at",
	"conversation_history", "updated_at", "version",
}

type tickets struct{ s *Store }

func (q tickets) Create(ctx context.Context, t *models.SupportTicket) error {
	t.ID = 0
	return translate(q.s.db.WithContext(ctx).Create(t).Error)
}

func (q tickets) Get(ctx context.Context, id int64) (*models.SupportTicket, error) {
	var t models.SupportTicket
	if err := q.s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (q tickets) scope(ctx context.Context, f store.TicketFilter) *gorm.DB {
	db := q.s.db.WithContext(ctx).Model(&models.SupportTicket{})
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.AssignedTo > 0 {
		db = db.Where("assigned_to = ?", f.AssignedTo)
	}
	if f.Unassigned {
		db = db.Where("assigned_to = 0")
	}
	if !f.CreatedAfter.IsZero() {
		db = db.Where("created_at >= ?", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		db = db.Where("created_at < ?", f.CreatedBefore)
	}
	if strings.TrimSpace(f.Search) != "" {
		like := likePattern(f.Search)
		db = db.Where("(LOWER(ticket_number) LIKE ? OR LOWER(subject) LIKE ? OR LOWER(message) LIKE ? OR LOWER(customer_email) LIKE ?)",
			like, like, like, like)
	}
	return db
}

func (q tickets) List(ctx context.Context, f store.TicketFilter, p store.Page) ([]models.SupportTicket, int64, error) {
	var total int64
	if err := q.scope(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := "id DESC"
	if f.OldestFirst {
		order = "id ASC"
	}
	out := make([]models.SupportTicket, 0)
	err := q.scope(ctx, f).Order(order).Scopes(paginate(p)).Find(&out).Error
	return out, total, err
}

func (q tickets) Apply(ctx context.Context, id int64, c store.TicketChange) (*models.SupportTicket, error) {
	for range maxApplyAttempts {
		var out *models.SupportTicket
		err := q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var cur models.SupportTicket
			if err := tx.First(&cur, id).Error; err != nil {
				return err
			}
			next := cur
			next.ConversationHistory = append([]models.TicketHistoryEntry(nil), cur.ConversationHistory...)
			if err := c.ApplyTo(&next, q.s.now()); err != nil {
				return err
			}
			res := tx.Model(&cur).Where("version = ?", cur.Version).Select(ticketColumns).Updates(&next)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStale
			}
			out = &next
			return nil
		})
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return nil, translate(err)
		}
		return out, nil
	}
	return nil, store.ErrContention
}

func (q tickets) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := q.s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", finalTicketStatuses, cutoff).
		Delete(&models.SupportTicket{})
	return res.RowsAffected, res.Error
}
