package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/princinho/sahoassist/config"
	"github.com/princinho/sahoassist/controllers"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/utils"
)

const slowRequest = 2 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

When SWEEP_INTERVAL_MINUTES is set the maintenance sweeps also run in-process;
otherwise schedule "sahoassist sweep all" externally.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := utils.SeedAdminUser(ctx, app.Store.Users(), cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
			return err
		}
	}

	gin.SetMode(cfg.GinMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SweepIntervalMinutes > 0 {
		go runSweeps(ctx, app.Sweeper, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg config.Config, app *App, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	allowedOrigins := map[string]bool{}
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}
	logger.Debug("cors allowed origins", "origins", cfg.AllowedOrigins)
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Webhook-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger, slowRequest))
	r.Use(middleware.Metrics(app.Metrics))

	if cfg.StorageDriver == config.StorageLocal {
		r.Static("/files", cfg.LocalStorageDir)
	}
	controllers.Register(r, app.API)
	return r
}

// runSweeps runs every sweep on a ticker until ctx is done.
func runSweeps(ctx context.Context, sweeper *services.Sweeper, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweeper.Run(ctx, services.SweepAll); err != nil {
				logger.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}
