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

var terminalStatuses = []models.ProductRequestStatus{
	models.ProductRequestStatusCompleted,
	models.ProductRequestStatusCancelled,
	models.ProductRequestStatusAutoClosed,
}

// requestColumns are written back by Apply.
var requestColumns = []string{
	"status", "priority", "notes", "vendors_contacted", "responses_received",
	"completed_at", "cancelled_at", "updated_at", "version",
}

type requests struct{ s *Store }

func (q requests) Create(ctx context.Context, r *models.ProductRequest, created models.RequestActivity) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r.ID = 0
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		created.ID = 0
		created.RequestID = r.ID
		if created.CreatedAt.IsZero() {
			created.CreatedAt = r.CreatedAt
		}
		return tx.Create(&created).Error
	}))
}

func (q requests) Get(ctx context.Context, id int64) (*models.ProductRequest, error) {
	var r models.ProductRequest
	if err := q.s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (q requests) scope(ctx context.Context, f store.RequestFilter) *gorm.DB {
	db := q.s.db.WithContext(ctx).Model(&models.ProductRequest{})
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.Category != "" {
		db = db.Where("LOWER(category) = ?", strings.ToLower(f.Category))
	}
	if f.UserID > 0 {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if !f.CreatedAfter.IsZero() {
		db = db.Where("created_at >= ?", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		db = db.Where("created_at < ?", f.CreatedBefore)
	}
	if strings.TrimSpace(f.Search) != "" {
		like := likePattern(f.Search)
		db = db.Where("(LOWER(request_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(description) LIKE ?)",
			like, like, like, like)
	}
	return db
}

func (q requests) List(ctx context.Context, f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
	var total int64
	if err := q.scope(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := "created_at DESC, id DESC"
	if f.OldestFirst {
		order = "created_at ASC, id ASC"
	}
	out := make([]models.ProductRequest, 0)
	err := q.scope(ctx, f).Order(order).Scopes(paginate(p)).Find(&out).Error
	return out, total, err
}

// Apply re-reads the row and writes it back guarded by its version, retrying
// when a concurrent writer got there first.
func (q requests) Apply(ctx context.Context, id int64, c store.RequestChange) (*models.ProductRequest, error) {
	for range maxApplyAttempts {
		var out *models.ProductRequest
		err := q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var cur models.ProductRequest
			if err := tx.First(&cur, id).Error; err != nil {
				return err
			}
			next := cur
			now := q.s.now()
			if err := c.ApplyTo(&next, now); err != nil {
				return err
			}
			res := tx.Model(&cur).Where("version = ?", cur.Version).Select(requestColumns).Updates(&next)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStale
			}
			if acts := c.StampActivities(id, now); len(acts) > 0 {
				if err := tx.Create(&acts).Error; err != nil {
					return err
				}
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

func (q requests) Activities(ctx context.Context, id int64) ([]models.RequestActivity, error) {
	db := q.s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.ProductRequest{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	out := make([]models.RequestActivity, 0)
	err := db.Where("request_id = ?", id).Order("id").Find(&out).Error
	return out, err
}

func (q requests) Delete(ctx context.Context, id int64) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ProductRequest{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Where("request_id = ?", id).Delete(&models.RequestActivity{}).Error
	}))
}

func (q requests) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		err := tx.Model(&models.ProductRequest{}).
			Where("status IN ? AND created_at < ?", terminalStatuses, cutoff).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.Where("request_id IN ?", ids).Delete(&models.RequestActivity{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.ProductRequest{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}
