package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/catalog"
	"github.com/princinho/sahoassist/config"
	"github.com/princinho/sahoassist/controllers"
	"github.com/princinho/sahoassist/database"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/metrics"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/sqlstore"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/store/memstore"
	"github.com/princinho/sahoassist/utils"
)

// App holds the wired services of one process.
type App struct {
	Store   store.Store
	Metrics *metrics.Metrics
	Sweeper *services.Sweeper
	API     controllers.API

	gateway *ai.Gateway
}

// Close releases the store and the AI client.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.gateway.Close(), a.Store.Close(ctx))
}

// openStore connects the backend selected by STORE_DRIVER. The mongo database is
// returned as well so the storefront catalog can read from it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, *mongo.Database, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		s, err := database.Open(ctx, cfg.MongoURI, cfg.DatabaseName)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	case config.StoreSQL:
		s, err := sqlstore.Open(cfg.SQLDialect, cfg.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.StoreMemory:
		return memstore.New(), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func newMailer(cfg config.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return mailer.LogMailer{Logger: logger}, nil
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		Timeout:  cfg.MailTimeout(),
	})
}

func newGateway(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *ai.Gateway {
	opts := ai.Options{Timeout: cfg.AITimeout(), MaxHistoryTurns: cfg.AIMaxHistoryTurns}
	model, err := ai.NewModel(ctx, cfg)
	if err != nil {
		logger.Warn("AI provider disabled, using canned replies", "provider", cfg.AIProvider, "error", err)
		return ai.NewGateway(nil, opts, logger, m)
	}
	return ai.NewGateway(model, opts, logger, m)
}

func newMatcher(cfg config.Config, db *mongo.Database, logger *slog.Logger) (*catalog.Matcher, error) {
	var adapters []catalog.Adapter
	if db != nil && cfg.CatalogMongoEnabled {
		adapters = append(adapters, catalog.NewMongoAdapter(db, cfg.SiteURL))
	}
	if cfg.CatalogFile != "" {
		static, err := catalog.LoadStaticCatalog(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, static)
	}
	if len(adapters) == 0 {
		logger.Warn("no product catalog configured, product search returns nothing")
	}
	return catalog.NewMatcher(adapters, catalog.Options{
		CandidateLimit: cfg.CatalogCandidateLimit,
		Timeout:        cfg.CatalogTimeout(),
	}, logger), nil
}

// buildApp wires every service from cfg. The caller must Close the result.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	st, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	app, err := wire(ctx, cfg, logger, st, db)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func wire(ctx context.Context, cfg config.Config, logger *slog.Logger, st store.Store, db *mongo.Database) (*App, error) {
	m := metrics.New()

	mail, err := newMailer(cfg, logger)
	if err != nil {
		return nil, err
	}
	uploads, err := utils.NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	exports := uploads
	if exports == nil {
		exports = utils.NewLocalStore(cfg.ExportDir, "")
	}
	matcher, err := newMatcher(cfg, db, logger)
	if err != nil {
		return nil, err
	}
	gateway := newGateway(ctx, cfg, logger, m)

	deps := services.Deps{
		Store:   st,
		Mailer:  mail,
		Hooks:   services.NewHooks(logger),
		Metrics: m,
		Logger:  logger,
		Site:    mailer.Site{SiteName: cfg.SiteName, SiteURL: cfg.SiteURL},
	}

	requests := services.NewRequestService(deps, services.RequestConfig{
		Prefix:        cfg.RequestPrefix,
		AutoCloseDays: cfg.AutoCloseDays,
		OverdueHours:  cfg.OverdueHours,
		RetentionDays: cfg.RequestRetentionDays,
	})
	tokens := utils.NewVendorTokenSigner(cfg.VendorTokenSecret, cfg.VendorTokenTTL())
	notifier := services.NewNotifier(deps, services.NotifierConfig{
		NotifyAll:             cfg.NotifyAllVendors,
		NotifyAllCap:          cfg.NotifyAllCap,
		Concurrency:           cfg.NotifyConcurrency,
		SendTimeout:           cfg.MailTimeout(),
		PublicAPIURL:          cfg.PublicAPIURL,
		AdminEmail:            cfg.AdminEmail,
		WebhookSecret:         cfg.WebhookSecret,
		CustomerConfirmations: cfg.CustomerConfirmations,
	}, tokens, requests)
	tickets := services.NewTicketService(deps, services.TicketConfig{
		Prefix:                cfg.TicketPrefix,
		RetentionDays:         cfg.TicketRetentionDays,
		AutoAssign:            cfg.AutoAssignTickets,
		AdminNotifications:    cfg.AdminNotifications,
		CustomerConfirmations: cfg.CustomerConfirmations,
		AdminEmail:            cfg.AdminEmail,
	}, nil)
	chat := services.NewChatService(deps, services.ChatConfig{RetentionDays: cfg.ConversationRetentionDays},
		gateway, matcher, tickets, uploads)
	sweeper := services.NewSweeper(requests, tickets, chat, m, logger)

	maxLimit, defaultLimit := cfg.QueryLimits()
	return &App{
		Store:   st,
		Metrics: m,
		Sweeper: sweeper,
		gateway: gateway,
		API: controllers.API{
			Users:       st.Users(),
			Requests:    requests,
			Broadcaster: services.NewBroadcaster(deps, requests, notifier),
			Notifier:    notifier,
			Vendors:     services.NewVendorService(deps),
			Tickets:     tickets,
			Chat:        chat,
			Health:      services.NewHealthService(deps, gateway, uploads),
			Sweeper:     sweeper,
			Metrics:     m,
			Uploads:     uploads,
			Exports:     exports,
			Images:      utils.NewImageValidator(cfg.AllowedImageMimeTypes, cfg.MaxUploadSizeMB),
			JWTSecret:   cfg.JWTSecret,
			AccessTTL:   cfg.AccessTokenTTL(),
			Limits:      controllers.PageLimits{Max: maxLimit, Default: defaultLimit},
		},
	}, nil
}
