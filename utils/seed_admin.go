package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

// SeedAdminUser creates the admin account if no user with that email exists yet.
func SeedAdminUser(ctx context.Context, users store.UserStore, email, password string, logger *slog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return fmt.Errorf("missing ADMIN_EMAIL or ADMIN_PASSWORD env vars")
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		logger.Info("admin user already exists", "email", email)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	err = users.Create(ctx, &models.User{
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		logger.Info("admin user already exists", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin failed: %w", err)
	}
	logger.Info("admin user seeded", "email", email)
	return nil
}
