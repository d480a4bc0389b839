package sqlstore

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

// rateExpr recomputes the response rate from the stored counters.
var rateExpr = gorm.Expr("CASE WHEN total_requests > 0 THEN total_responses * 100.0 / total_requests ELSE 0 END")

type vendors struct{ s *Store }

func categoriesByID(db *gorm.DB) *gorm.DB { return db.Order("id") }

func (q vendors) withCategories(ctx context.Context) *gorm.DB {
	return q.s.db.WithContext(ctx).Preload("Categories", categoriesByID)
}

func emailTaken(tx *gorm.DB, email string, except int64) error {
	var n int64
	db := tx.Model(&models.Vendor{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if except > 0 {
		db = db.Where("id <> ?", except)
	}
	if err := db.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return store.ErrDuplicate
	}
	return nil
}

func vendorExists(tx *gorm.DB, id int64) error {
	var n int64
	if err := tx.Model(&models.Vendor{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q vendors) Create(ctx context.Context, v *models.Vendor) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailTaken(tx, v.Email, 0); err != nil {
			return err
		}
		v.ID = 0
		for i := range v.Categories {
			v.Categories[i].ID = 0
		}
		return tx.Create(v).Error
	}))
}

func (q vendors) Get(ctx context.Context, id int64) (*models.Vendor, error) {
	var v models.Vendor
	if err := q.withCategories(ctx).First(&v, id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (q vendors) GetByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	var v models.Vendor
	err := q.withCategories(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).Take(&v).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (q vendors) taggedWith(ctx context.Context, slugs ...string) *gorm.DB {
	return q.s.db.WithContext(ctx).Model(&models.VendorCategory{}).
		Select("vendor_id").
		Where("category_slug IN ?", slugs)
}

func (q vendors) scope(ctx context.Context, f store.VendorFilter) *gorm.DB {
	db := q.s.db.WithContext(ctx).Model(&models.Vendor{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		db = db.Where("id IN (?)", q.taggedWith(ctx, f.Category))
	}
	if strings.TrimSpace(f.Search) != "" {
		like := likePattern(f.Search)
		db = db.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?)", like, like, like)
	}
	return db
}

func (q vendors) List(ctx context.Context, f store.VendorFilter, p store.Page) ([]models.Vendor, int64, error) {
	var total int64
	if err := q.scope(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]models.Vendor, 0)
	err := q.scope(ctx, f).Preload("Categories", categoriesByID).Order("id").Scopes(paginate(p)).Find(&out).Error
	return out, total, err
}

func (q vendors) Update(ctx context.Context, v *models.Vendor) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := vendorExists(tx, v.ID); err != nil {
			return err
		}
		if err := emailTaken(tx, v.Email, v.ID); err != nil {
			return err
		}
		return tx.Model(&models.Vendor{ID: v.ID}).
			Omit(clause.Associations).
			Select("user_id", "name", "email", "company", "phone", "status", "notifications_enabled", "updated_at").
			Updates(v).Error
	}))
}

func (q vendors) AddCategory(ctx context.Context, vendorID int64, c models.VendorCategory) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := vendorExists(tx, vendorID); err != nil {
			return err
		}
		var n int64
		err := tx.Model(&models.VendorCategory{}).
			Where("vendor_id = ? AND category_slug = ?", vendorID, c.CategorySlug).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return store.ErrDuplicate
		}
		c.ID = 0
		c.VendorID = vendorID
		return tx.Create(&c).Error
	}))
}

func (q vendors) reachable(ctx context.Context) *gorm.DB {
	return q.withCategories(ctx).
		Where("status = ? AND notifications_enabled = ?", models.VendorStatusActive, true).
		Order("id")
}

func (q vendors) FindByCategory(ctx context.Context, slug string) ([]models.Vendor, error) {
	out := make([]models.Vendor, 0)
	err := q.reachable(ctx).Where("id IN (?)", q.taggedWith(ctx, slug, models.CategoryAll)).Find(&out).Error
	return out, err
}

func (q vendors) ListReachable(ctx context.Context, limit int) ([]models.Vendor, error) {
	db := q.reachable(ctx)
	if limit > 0 {
		db = db.Limit(limit)
	}
	out := make([]models.Vendor, 0)
	err := db.Find(&out).Error
	return out, err
}

func (q vendors) bump(ctx context.Context, id int64, counters map[string]any) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Vendor{}).Where("id = ?", id).UpdateColumns(counters)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Model(&models.Vendor{}).Where("id = ?", id).UpdateColumn("response_rate", rateExpr).Error
	}))
}

func (q vendors) RecordNotified(ctx context.Context, id int64) error {
	return q.bump(ctx, id, map[string]any{
		"total_requests": gorm.Expr("total_requests + 1"),
	})
}

func (q vendors) RecordResponse(ctx context.Context, id int64) error {
	return q.bump(ctx, id, map[string]any{
		"total_responses":    gorm.Expr("total_responses + 1"),
		"successful_matches": gorm.Expr("successful_matches + 1"),
	})
}
