package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/princinho/sahoassist/apperr"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreSQL    = "sql"
	StoreMemory = "memory"
)

// AI providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// Object storage drivers.
const (
	StorageNone  = "none"
	StorageR2    = "r2"
	StorageGCS   = "gcs"
	StorageLocal = "local"
)

// Config holds every setting of the process. It is loaded once and passed explicitly.
type Config struct {
	// HTTP
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SiteName       string   `yaml:"site_name"`
	SiteURL        string   `yaml:"site_url"`
	PublicAPIURL   string   `yaml:"public_api_url"`

	// Storage backend
	StoreDriver  string `yaml:"store_driver"`
	MongoURI     string `yaml:"mongodb_uri"`
	DatabaseName string `yaml:"database_name"`
	SQLDialect   string `yaml:"sql_dialect"`
	SQLDSN       string `yaml:"sql_dsn"`

	// AI
	AIProvider        string `yaml:"ai_provider"`
	AIAPIKey          string `yaml:"ai_api_key"`
	AIModel           string `yaml:"ai_model"`
	AIBaseURL         string `yaml:"ai_base_url"`
	AIVision          string `yaml:"ai_vision"`
	AITimeoutSeconds  int    `yaml:"ai_timeout_seconds"`
	AIMaxHistoryTurns int    `yaml:"ai_max_history_turns"`
	AIMaxTokens       int    `yaml:"ai_max_tokens"`

	// Catalog
	CatalogFile           string `yaml:"catalog_file"`
	CatalogMongoEnabled   bool   `yaml:"catalog_mongo_enabled"`
	CatalogCandidateLimit int    `yaml:"catalog_candidate_limit"`
	CatalogTimeoutSeconds int    `yaml:"catalog_timeout_seconds"`

	// Requests
	RequestPrefix        string `yaml:"request_prefix"`
	AutoCloseDays        int    `yaml:"auto_close_days"`
	OverdueHours         int    `yaml:"overdue_hours"`
	RequestRetentionDays int    `yaml:"request_retention_days"`
	ExportDir            string `yaml:"export_dir"`

	// Vendors
	NotifyAllVendors   bool   `yaml:"notify_all_vendors"`
	NotifyAllCap       int    `yaml:"notify_all_cap"`
	NotifyConcurrency  int    `yaml:"notify_concurrency"`
	VendorTokenSecret  string `yaml:"vendor_token_secret"`
	VendorTokenTTLHour int    `yaml:"vendor_token_ttl_hours"`
	WebhookSecret      string `yaml:"webhook_secret"`

	// Support tickets
	TicketPrefix          string `yaml:"ticket_prefix"`
	TicketRetentionDays   int    `yaml:"ticket_retention_days"`
	AutoAssignTickets     bool   `yaml:"auto_assign_tickets"`
	AdminNotifications    bool   `yaml:"admin_notifications"`
	CustomerConfirmations bool   `yaml:"customer_confirmations"`

	// Conversations
	ConversationRetentionDays int `yaml:"conversation_retention_days"`

	// Mail
	SMTPHost           string `yaml:"smtp_host"`
	SMTPPort           int    `yaml:"smtp_port"`
	SMTPUsername       string `yaml:"smtp_username"`
	SMTPPassword       string `yaml:"smtp_password"`
	MailFrom           string `yaml:"mail_from"`
	AdminEmail         string `yaml:"admin_email"`
	MailTimeoutSeconds int    `yaml:"mail_timeout_seconds"`

	// Object storage
	StorageDriver         string   `yaml:"storage_driver"`
	R2Bucket              string   `yaml:"r2_bucket"`
	R2AccessKeyID         string   `yaml:"r2_access_key_id"`
	R2SecretAccessKey     string   `yaml:"r2_secret_access_key"`
	R2Endpoint            string   `yaml:"r2_endpoint"`
	R2PublicDomain        string   `yaml:"r2_public_domain"`
	GCSBucket             string   `yaml:"gcs_bucket"`
	CredentialsFile       string   `yaml:"credentials_file_location"`
	LocalStorageDir       string   `yaml:"local_storage_dir"`
	MaxUploadSizeMB       int      `yaml:"max_upload_size_mb"`
	AllowedImageMimeTypes []string `yaml:"allowed_image_mime_types"`

	// Auth
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	AdminPassword         string `yaml:"admin_password"`

	// Queries
	DefaultQueryLimit int `yaml:"default_read_query_limit"`
	MaxQueryLimit     int `yaml:"read_query_max_limit"`

	// Scheduler
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns a configuration with every default applied.
func Defaults() Config {
	return Config{
		Port:                      "8080",
		GinMode:                   "release",
		SiteName:                  "Saho",
		SiteURL:                   "http://localhost:3000",
		PublicAPIURL:              "http://localhost:8080",
		StoreDriver:               StoreMongo,
		DatabaseName:              "saho",
		SQLDialect:                "sqlite",
		SQLDSN:                    "sahoassist.db",
		AIProvider:                ProviderOpenAI,
		AIModel:                   "gpt-4o-mini",
		AITimeoutSeconds:          30,
		AIMaxHistoryTurns:         10,
		AIMaxTokens:               500,
		CatalogMongoEnabled:       true,
		CatalogCandidateLimit:     50,
		CatalogTimeoutSeconds:     10,
		RequestPrefix:             "REQ",
		AutoCloseDays:             7,
		OverdueHours:              48,
		RequestRetentionDays:      365,
		ExportDir:                 "exports",
		NotifyAllCap:              10,
		NotifyConcurrency:         4,
		VendorTokenTTLHour:        24,
		TicketPrefix:              "TICKET",
		TicketRetentionDays:       90,
		AdminNotifications:        true,
		CustomerConfirmations:     true,
		ConversationRetentionDays: 90,
		SMTPPort:                  587,
		MailFrom:                  "no-reply@localhost",
		MailTimeoutSeconds:        15,
		StorageDriver:             StorageNone,
		LocalStorageDir:           "uploads",
		MaxUploadSizeMB:           5,
		AllowedImageMimeTypes:     []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		AccessTokenTTLMinutes:     15,
		DefaultQueryLimit:         20,
		MaxQueryLimit:             100,
		LogLevel:                  slog.LevelInfo,
	}
}

// Load reads configuration: defaults, then the optional YAML file named by
// APP_CONFIG_FILE, then .env, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	cfg := Defaults()
	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.SiteName = getEnv("SITE_NAME", cfg.SiteName)
	cfg.SiteURL = getEnv("SITE_URL", cfg.SiteURL)
	cfg.PublicAPIURL = getEnv("PUBLIC_API_URL", cfg.PublicAPIURL)

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.MongoURI = getEnv("MONGODB_URI", cfg.MongoURI)
	cfg.DatabaseName = getEnv("DATABASE_NAME", cfg.DatabaseName)
	cfg.SQLDialect = strings.ToLower(getEnv("SQL_DIALECT", cfg.SQLDialect))
	cfg.SQLDSN = getEnv("SQL_DSN", cfg.SQLDSN)

	cfg.AIProvider = strings.ToLower(getEnv("AI_PROVIDER", cfg.AIProvider))
	cfg.AIAPIKey = getEnv("AI_API_KEY", cfg.AIAPIKey)
	cfg.AIModel = getEnv("AI_MODEL", cfg.AIModel)
	cfg.AIBaseURL = getEnv("AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIVision = strings.ToLower(getEnv("AI_VISION", cfg.AIVision))
	cfg.AITimeoutSeconds = getEnvInt("AI_TIMEOUT_SECONDS", cfg.AITimeoutSeconds)
	cfg.AIMaxHistoryTurns = getEnvInt("AI_MAX_HISTORY_TURNS", cfg.AIMaxHistoryTurns)
	cfg.AIMaxTokens = getEnvInt("AI_MAX_TOKENS", cfg.AIMaxTokens)

	cfg.CatalogFile = getEnv("CATALOG_FILE", cfg.CatalogFile)
	cfg.CatalogMongoEnabled = getEnvBool("CATALOG_MONGO_ENABLED", cfg.CatalogMongoEnabled)
	cfg.CatalogCandidateLimit = getEnvInt("CATALOG_CANDIDATE_LIMIT", cfg.CatalogCandidateLimit)
	cfg.CatalogTimeoutSeconds = getEnvInt("CATALOG_TIMEOUT_SECONDS", cfg.CatalogTimeoutSeconds)

	cfg.RequestPrefix = getEnv("REQUEST_PREFIX", cfg.RequestPrefix)
	cfg.AutoCloseDays = getEnvInt("AUTO_CLOSE_DAYS", cfg.AutoCloseDays)
	cfg.OverdueHours = getEnvInt("OVERDUE_HOURS", cfg.OverdueHours)
	cfg.RequestRetentionDays = getEnvInt("REQUEST_RETENTION_DAYS", cfg.RequestRetentionDays)
	cfg.ExportDir = getEnv("EXPORT_DIR", cfg.ExportDir)

	cfg.NotifyAllVendors = getEnvBool("NOTIFY_ALL_VENDORS", cfg.NotifyAllVendors)
	cfg.NotifyAllCap = getEnvInt("NOTIFY_ALL_CAP", cfg.NotifyAllCap)
	cfg.NotifyConcurrency = getEnvInt("NOTIFY_CONCURRENCY", cfg.NotifyConcurrency)
	cfg.VendorTokenSecret = getEnv("VENDOR_TOKEN_SECRET", cfg.VendorTokenSecret)
	cfg.VendorTokenTTLHour = getEnvInt("VENDOR_TOKEN_TTL_HOURS", cfg.VendorTokenTTLHour)
	cfg.WebhookSecret = getEnv("WEBHOOK_SECRET", cfg.WebhookSecret)

	cfg.TicketPrefix = getEnv("TICKET_PREFIX", cfg.TicketPrefix)
	cfg.TicketRetentionDays = getEnvInt("TICKET_RETENTION_DAYS", cfg.TicketRetentionDays)
	cfg.AutoAssignTickets = getEnvBool("AUTO_ASSIGN_TICKETS", cfg.AutoAssignTickets)
	cfg.AdminNotifications = getEnvBool("ADMIN_NOTIFICATIONS", cfg.AdminNotifications)
	cfg.CustomerConfirmations = getEnvBool("CUSTOMER_CONFIRMATIONS", cfg.CustomerConfirmations)

	cfg.ConversationRetentionDays = getEnvInt("CONVERSATION_RETENTION_DAYS", cfg.ConversationRetentionDays)

	cfg.SMTPHost = getEnv("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getEnvInt("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.MailFrom)
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", cfg.AdminEmail)))
	cfg.MailTimeoutSeconds = getEnvInt("MAIL_TIMEOUT_SECONDS", cfg.MailTimeoutSeconds)

	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", cfg.StorageDriver))
	cfg.R2Bucket = getEnv("R2_BUCKET", cfg.R2Bucket)
	cfg.R2AccessKeyID = getEnv("R2_ACCESS_KEY_ID", cfg.R2AccessKeyID)
	cfg.R2SecretAccessKey = getEnv("R2_SECRET_ACCESS_KEY", cfg.R2SecretAccessKey)
	cfg.R2Endpoint = getEnv("R2_ENDPOINT", cfg.R2Endpoint)
	cfg.R2PublicDomain = getEnv("R2_PUBLIC_DOMAIN", cfg.R2PublicDomain)
	cfg.GCSBucket = getEnv("GCS_BUCKET", cfg.GCSBucket)
	cfg.CredentialsFile = getEnv("CREDENTIALS_FILE_LOCATION", cfg.CredentialsFile)
	cfg.LocalStorageDir = getEnv("LOCAL_STORAGE_DIR", cfg.LocalStorageDir)
	cfg.MaxUploadSizeMB = getEnvInt("MAX_UPLOAD_SIZE_MB", cfg.MaxUploadSizeMB)
	cfg.AllowedImageMimeTypes = getEnvList("ALLOWED_IMAGE_MIME_TYPES", cfg.AllowedImageMimeTypes)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AccessTokenTTLMinutes = getEnvInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTLMinutes)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)

	cfg.DefaultQueryLimit = getEnvInt("DEFAULT_READ_QUERY_LIMIT", cfg.DefaultQueryLimit)
	cfg.MaxQueryLimit = getEnvInt("READ_QUERY_MAX_LIMIT", cfg.MaxQueryLimit)

	cfg.SweepIntervalMinutes = getEnvInt("SWEEP_INTERVAL_MINUTES", cfg.SweepIntervalMinutes)

	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("LOG_LEVEL", cfg.LogLevel.String()))
}

// Validate reports settings the process cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return apperr.Configuration("MONGODB_URI is required with the mongo store driver")
		}
	case StoreSQL:
		if c.SQLDialect != "sqlite" && c.SQLDialect != "mysql" {
			return apperr.Configuration("unsupported SQL_DIALECT %q", c.SQLDialect)
		}
	case StoreMemory:
	default:
		return apperr.Configuration("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.StorageDriver {
	case StorageNone, StorageLocal, StorageR2, StorageGCS:
	default:
		return apperr.Configuration("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// ValidateServe adds the checks that only matter for the HTTP server.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return apperr.Configuration("JWT_SECRET is required")
	}
	if c.VendorTokenSecret == "" {
		return apperr.Configuration("VENDOR_TOKEN_SECRET is required")
	}
	return nil
}

func (c Config) AITimeout() time.Duration      { return seconds(c.AITimeoutSeconds, 30) }
func (c Config) CatalogTimeout() time.Duration { return seconds(c.CatalogTimeoutSeconds, 10) }
func (c Config) MailTimeout() time.Duration    { return seconds(c.MailTimeoutSeconds, 15) }

func (c Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) VendorTokenTTL() time.Duration {
	if c.VendorTokenTTLHour <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.VendorTokenTTLHour) * time.Hour
}

// QueryLimits returns the max and default page sizes.
func (c Config) QueryLimits() (int, int) {
	maxLimit, defaultLimit := c.MaxQueryLimit, c.DefaultQueryLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return maxLimit, defaultLimit
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	out := make([]string, 0)
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
