package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/texnika/texnika-backend/internal/listings"
	"github.com/texnika/texnika-backend/internal/search"
	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// reindex rebuilds the listings index from the database and exits.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reindex"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reindex",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	index, err := search.OpenIndex(ctx, cfg.Search, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap search index", err)
		os.Exit(1)
	}

	syncService, err := search.NewSyncService(search.SyncServiceParams{
		Listings:  listings.NewRepository(dbClient.DB()),
		Index:     index,
		Logger:    logg,
		BatchSize: cfg.Search.ReindexBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create search sync service", err)
		os.Exit(1)
	}

	indexed, err := syncService.ReindexAll(ctx)
	if err != nil {
		logg.Error(ctx, "reindex failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "indexed", indexed), "reindex complete")
}
