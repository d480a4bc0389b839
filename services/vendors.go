package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// VendorService manages vendor records for the admin API.
type VendorService struct {
	deps Deps
}

func NewVendorService(deps Deps) *VendorService {
	return &VendorService{deps: deps.withDefaults()}
}

type VendorInput struct {
	UserID     int64
	Name       string
	Email      string
	Company    string
	Phone      string
	Categories []string
}

type VendorPatch struct {
	Name                 *string
	Company              *string
	Phone                *string
	Status               *models.VendorStatus
	NotificationsEnabled *bool
}

func (s *VendorService) Create(ctx context.Context, in VendorInput) (*models.Vendor, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email %q", in.Email)
	}

	now := s.deps.Now()
	v := &models.Vendor{
		UserID:               in.UserID,
		Name:                 name,
		Email:                email,
		Company:              strings.TrimSpace(in.Company),
		Phone:                strings.TrimSpace(in.Phone),
		Status:               models.VendorStatusActive,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	seen := map[string]bool{}
	for i, c := range in.Categories {
		slug := utils.GenerateSlug(c)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		v.Categories = append(v.Categories, models.VendorCategory{
			CategoryName: strings.TrimSpace(c),
			CategorySlug: slug,
			IsPrimary:    i == 0,
			CreatedAt:    now,
		})
	}

	if err := s.deps.Store.Vendors().Create(ctx, v); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("a vendor with email %s already exists", email)
		}
		return nil, fmt.Errorf("create vendor: %w", err)
	}
	s.deps.Logger.InfoContext(ctx, "vendor created", "vendor_id", v.ID, "email", v.Email)
	return v, nil
}

func (s *VendorService) Get(ctx context.Context, id int64) (*models.Vendor, error) {
	v, err := s.deps.Store.Vendors().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "vendor", id)
	}
	return v, nil
}

func (s *VendorService) List(ctx context.Context, f store.VendorFilter, p store.Page) ([]models.Vendor, int64, error) {
	if f.Category != "" {
		f.Category = utils.GenerateSlug(f.Category)
	}
	return s.deps.Store.Vendors().List(ctx, f, p)
}

func (s *VendorService) Update(ctx context.Context, id int64, p VendorPatch) (*models.Vendor, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		v.Name = strings.TrimSpace(*p.Name)
	}
	if p.Company != nil {
		v.Company = strings.TrimSpace(*p.Company)
	}
	if p.Phone != nil {
		v.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Status != nil {
		if *p.Status != models.VendorStatusActive && *p.Status != models.VendorStatusInactive {
			return nil, apperr.Validation("invalid vendor status %q", *p.Status)
		}
		v.Status = *p.Status
	}
	if p.NotificationsEnabled != nil {
		v.NotificationsEnabled = *p.NotificationsEnabled
	}
	v.UpdatedAt = s.deps.Now()
	if err := s.deps.Store.Vendors().Update(ctx, v); err != nil {
		return nil, notFound(err, "vendor", id)
	}
	return v, nil
}

// AddCategory tags a vendor with a category name; the slug is derived from it.
func (s *VendorService) AddCategory(ctx context.Context, id int64, name string, primary bool) (*models.Vendor, error) {
	slug := utils.GenerateSlug(name)
	if slug == "" {
		return nil, apperr.Validation("category name is required")
	}
	err := s.deps.Store.Vendors().AddCategory(ctx, id, models.VendorCategory{
		CategoryName: strings.TrimSpace(name),
		CategorySlug: slug,
		IsPrimary:    primary,
		CreatedAt:    s.deps.Now(),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Validation("vendor already has category %s", slug)
	case err != nil:
		return nil, notFound(err, "vendor", id)
	}
	return s.Get(ctx, id)
}

func (s *VendorService) Notifications(ctx context.Context, id int64, p store.Page) ([]models.VendorNotification, int64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.deps.Store.Notifications().ListByVendor(ctx, id, p)
}
