package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/texnika/texnika-backend/internal/cron"
	"github.com/texnika/texnika-backend/internal/listings"
	"github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/metrics"
	"github.com/texnika/texnika-backend/pkg/migrate"
	"github.com/texnika/texnika-backend/pkg/outbox"
	"github.com/texnika/texnika-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": serviceName})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// Lock keys are scoped per environment.
	lock, err := cron.NewRedisLock(redisClient, "cron-worker:"+envOrLocal(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	jobs, err := buildJobs(cfg, dbClient, logg)
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.ExpirePromotionsInterval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(ctx, "cron worker started")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) ([]cron.Job, error) {
	listingsRepo := listings.NewRepository(dbClient.DB())
	access, err := listings.NewAccessChecker(listingsRepo)
	if err != nil {
		return nil, fmt.Errorf("listing access: %w", err)
	}
	ledger, err := promotions.NewService(promotions.ServiceParams{
		Repo:     promotions.NewRepository(dbClient.DB()),
		Listings: listingsRepo,
		Tx:       dbClient,
		Access:   access,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("promotion ledger: %w", err)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	reindex := outbox.NewService(outboxRepo, logg)
	expiry, err := cron.NewPromotionExpiryJob(cron.PromotionExpiryJobParams{
		Logger:  logg,
		DB:      dbClient,
		Ledger:  ledger,
		Reindex: reindex,
	})
	if err != nil {
		return nil, fmt.Errorf("promotion expiry job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
		Every:      cfg.Cron.OutboxRetentionEvery,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	freshness, err := cron.NewFreshnessRefreshJob(cron.FreshnessRefreshJobParams{
		Logger:    logg,
		DB:        dbClient,
		Listings:  listingsRepo,
		Reindex:   reindex,
		BatchSize: cfg.Search.ReindexBatchSize,
		Every:     cfg.Cron.FreshnessRefreshEvery,
	})
	if err != nil {
		return nil, fmt.Errorf("freshness refresh job: %w", err)
	}
	return []cron.Job{expiry, freshness, retention}, nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
