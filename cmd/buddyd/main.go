package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/app"
	"github.com/languagebuddy/buddy/internal/config"
	"github.com/languagebuddy/buddy/internal/credential"
	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/repository/base"
	"github.com/languagebuddy/buddy/internal/service"
	"github.com/languagebuddy/buddy/internal/watch"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogFile)
	defer logger.Sync()

	logger.Info("Starting language buddy store",
		zap.String("environment", cfg.Environment),
		zap.String("driver", cfg.DBDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *migrateOnly); err != nil {
		logger.Fatal("Store stopped", zap.Error(err))
	}
}

// run owns every resource it opens, so all of them are released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrateOnly bool) error {
	database, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	migrator, err := app.NewMigrator(database.SQL, database.Dialect, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Run(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if migrateOnly {
		return nil
	}

	hub := watch.NewHub(logger)
	db := base.NewDB(database.SQL, database.Dialect, hub, logger)

	m := metrics.New()
	m.TrackSubscriptions(hub.Len)

	services := service.New(
		db,
		credential.NewStore(cfg.CredentialsPath, logger),
		credential.NewHasher(cfg.BcryptCost),
		service.Options{
			RatingsOnePerRater: cfg.RatingsOnePerRater,
			RecentChatsLimit:   cfg.RecentChatsLimit,
		},
		m,
		logger,
	)

	if p, err := services.Accounts.CurrentPrincipal(ctx); err == nil {
		logger.Info("Restored active account", zap.String("email", p.Email))
	}

	scheduler := app.NewScheduler(services.Sessions, cfg.OrphanSweepInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var serverErrs <-chan error
	var server *app.OpsServer
	if cfg.HTTPAddr != "" {
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		server = app.NewOpsServer(cfg.HTTPAddr, db, migrator, m, logger)
		serverErrs = server.Start()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-serverErrs:
		if ok && err != nil {
			logger.Error("Ops server failed", zap.Error(err))
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to stop ops server", zap.Error(err))
		}
	}

	return nil
}
