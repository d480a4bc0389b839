package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

var retryableStatuses = []models.NotificationStatus{
	models.NotificationStatusFailed,
	models.NotificationStatusError,
}

type notifications struct{ s *Store }

func (q notifications) pair(db *gorm.DB, vendorID, requestID int64) *gorm.DB {
	return db.Model(&models.VendorNotification{}).Where("vendor_id = ? AND request_id = ?", vendorID, requestID)
}

func (q notifications) Claim(ctx context.Context, vendorID, requestID int64, tokenID string, now, staleBefore time.Time) (*models.VendorNotification, bool, error) {
	var (
		n       models.VendorNotification
		claimed bool
	)
	err := q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := q.pair(tx, vendorID, requestID).Take(&n).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			n = models.VendorNotification{
				VendorID:  vendorID,
				RequestID: requestID,
				Status:    models.NotificationStatusQueued,
				TokenID:   tokenID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			claimed = true
			return tx.Create(&n).Error
		}
		if err != nil {
			return err
		}
		res := tx.Model(&models.VendorNotification{}).
			Where("id = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
				n.ID, retryableStatuses, models.NotificationStatusQueued, staleBefore).
			UpdateColumns(map[string]any{
				"status":        models.NotificationStatusQueued,
				"token_id":      tokenID,
				"error_message": "",
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			n.Status = models.NotificationStatusQueued
			n.TokenID = tokenID
			n.ErrorMessage = ""
			n.UpdatedAt = now
			claimed = true
		}
		return nil
	})
	if errors.Is(translate(err), store.ErrDuplicate) {
		// another sender created the row first
		if err := q.pair(q.s.db.WithContext(ctx), vendorID, requestID).Take(&n).Error; err != nil {
			return nil, false, translate(err)
		}
		return &n, false, nil
	}
	if err != nil {
		return nil, false, translate(err)
	}
	return &n, claimed, nil
}

func (q notifications) SetStatus(ctx context.Context, id int64, status models.NotificationStatus, errMsg string, now time.Time) error {
	db := q.s.db.WithContext(ctx)
	res := db.Model(&models.VendorNotification{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"status":        status,
		"error_message": errMsg,
		"updated_at":    now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&models.VendorNotification{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
	}
	return nil
}

func (q notifications) MarkOpened(ctx context.Context, vendorID, requestID int64, tokenID string, now time.Time) error {
	return q.pair(q.s.db.WithContext(ctx), vendorID, requestID).
		Where("token_id = ? AND status = ?", tokenID, models.NotificationStatusSent).
		UpdateColumns(map[string]any{
			"status":     models.NotificationStatusOpened,
			"updated_at": now,
		}).Error
}

// MarkResponded only touches a row still bound to tokenID and not yet
// responded, so a token is consumed exactly once.
func (q notifications) MarkResponded(ctx context.Context, vendorID, requestID int64, tokenID, message string, now time.Time) error {
	res := q.pair(q.s.db.WithContext(ctx), vendorID, requestID).
		Where("token_id = ? AND status <> ?", tokenID, models.NotificationStatusResponded).
		UpdateColumns(map[string]any{
			"status":           models.NotificationStatusResponded,
			"response_message": message,
			"responded_at":     now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (q notifications) ListByRequest(ctx context.Context, requestID int64) ([]models.VendorNotification, error) {
	out := make([]models.VendorNotification, 0)
	err := q.s.db.WithContext(ctx).Where("request_id = ?", requestID).Order("id").Find(&out).Error
	return out, err
}

func (q notifications) ListByVendor(ctx context.Context, vendorID int64, p store.Page) ([]models.VendorNotification, int64, error) {
	scope := func() *gorm.DB {
		return q.s.db.WithContext(ctx).Model(&models.VendorNotification{}).Where("vendor_id = ?", vendorID)
	}
	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]models.VendorNotification, 0)
	err := scope().Order("id DESC").Scopes(paginate(p)).Find(&out).Error
	return out, total, err
}

func (q notifications) DeleteByRequest(ctx context.Context, requestID int64) error {
	return q.s.db.WithContext(ctx).Where("request_id = ?", requestID).Delete(&models.VendorNotification{}).Error
}
