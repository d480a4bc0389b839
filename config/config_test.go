package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/princinho/sahoassist/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.AutoCloseDays)
	assert.Equal(t, 48, cfg.OverdueHours)
	assert.Equal(t, 10, cfg.NotifyAllCap)
	assert.Equal(t, "REQ", cfg.RequestPrefix)
	assert.Equal(t, "TICKET", cfg.TicketPrefix)
	assert.Equal(t, 30*time.Second, cfg.AITimeout())
	assert.Equal(t, 24*time.Hour, cfg.VendorTokenTTL())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_close_days: 3\nrequest_prefix: PR\nnotify_all_vendors: true\n"), 0o600))

	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("AUTO_CLOSE_DAYS", "0")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.AutoCloseDays)
	assert.Equal(t, "PR", cfg.RequestPrefix)
	assert.True(t, cfg.NotifyAllVendors)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.MongoURI = ""
	assert.ErrorIs(t, cfg.Validate(), apperr.ErrConfiguration)

	cfg.StoreDriver = StoreMemory
	assert.NoError(t, cfg.Validate())

	cfg.StorageDriver = "ftp"
	assert.ErrorIs(t, cfg.Validate(), apperr.ErrConfiguration)

	cfg.StorageDriver = StorageNone
	assert.ErrorIs(t, cfg.ValidateServe(), apperr.ErrConfiguration)
	cfg.JWTSecret = "jwt"
	cfg.VendorTokenSecret = "vendor"
	assert.NoError(t, cfg.ValidateServe())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("vendor notified", "vendor_id", 3)
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "vendor notified")
	assert.Contains(t, file.String(), `"vendor_id":3`)
	assert.NotContains(t, file.String(), "hidden")
}
