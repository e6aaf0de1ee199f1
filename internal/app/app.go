// Package app wires the service together: configuration, database, cache,
// background jobs and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/cache"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/db"
	internalhttp "github.com/metergate/metergate/internal/http"
	"github.com/metergate/metergate/internal/ledger"
	"github.com/metergate/metergate/internal/logging"
	"github.com/metergate/metergate/internal/settings"
	"github.com/metergate/metergate/internal/tokenizer"
	"github.com/metergate/metergate/internal/watcher"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// Run boots the service and blocks until the context is cancelled.
func Run(ctx context.Context, configPath string) error {
	manager, errConfig := config.NewManager(configPath)
	if errConfig != nil {
		return fmt.Errorf("load config: %w", errConfig)
	}
	cfg := manager.Current()
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings snapshot refresh failed, using defaults")
	}

	var usageCache *cache.UsageCache
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, global usage cache disabled")
		} else {
			usageCache = cache.New(client)
		}
	}

	guard := ledger.NewGuard(conn, manager, usageCache)
	pricing := ledger.NewPricing(conn, manager)
	estimator := ledger.NewEstimator(conn, manager, guard, pricing)
	engine := ledger.NewEngine(conn, manager, guard, pricing)
	reconciler := ledger.NewReconciler(conn, usageCache)
	sweeper := ledger.NewAlertSweeper(conn)

	scheduler := cron.New()
	if schedule := cfg.Jobs.ReconcileSchedule; schedule != "" {
		if _, errJob := scheduler.AddFunc(schedule, func() {
			if _, err := reconciler.ReconcileGlobalUsage(context.Background()); err != nil {
				log.WithError(err).Warn("scheduled reconciliation failed")
			}
		}); errJob != nil {
			return fmt.Errorf("schedule reconciliation: %w", errJob)
		}
	}
	if schedule := cfg.Jobs.AlertSchedule; schedule != "" {
		if _, errJob := scheduler.AddFunc(schedule, func() {
			if err := sweeper.SweepGroupAlerts(context.Background()); err != nil {
				log.WithError(err).Warn("group alert sweep failed")
			}
		}); errJob != nil {
			return fmt.Errorf("schedule group alerts: %w", errJob)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	ledger.NewRetentionCleaner(conn).Start(ctx)

	if w, errWatch := watcher.New(manager); errWatch != nil {
		log.WithError(errWatch).Warn("config watcher unavailable, hot reload disabled")
	} else {
		go w.Run(ctx)
	}

	router := internalhttp.NewRouter(internalhttp.RouterDeps{
		DB:         conn,
		Config:     manager,
		Estimator:  estimator,
		Engine:     engine,
		Guard:      guard,
		Pricing:    pricing,
		Reconciler: reconciler,
		Counter:    tokenizer.Estimator{},
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if errServe := server.ListenAndServe(); errServe != nil && errServe != http.ErrServerClosed {
			errCh <- errServe
		}
	}()

	select {
	case errServe := <-errCh:
		return fmt.Errorf("http server: %w", errServe)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	log.Info("http server stopped")
	return nil
}
