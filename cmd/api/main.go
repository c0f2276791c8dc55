package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/texnika/texnika-backend/api/controllers"
	"github.com/texnika/texnika-backend/api/routes"
	"github.com/texnika/texnika-backend/internal/billing"
	"github.com/texnika/texnika-backend/internal/listings"
	"github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/internal/search"
	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/metrics"
	"github.com/texnika/texnika-backend/pkg/migrate"
	"github.com/texnika/texnika-backend/pkg/outbox"
	"github.com/texnika/texnika-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Billing and wallet routes keep serving without search.
	index, err := search.OpenIndex(ctx, cfg.Search, logg)
	if err != nil {
		logg.Error(ctx, "search index disabled", err)
		index = search.Unavailable(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	listingsRepo := listings.NewRepository(dbClient.DB())
	access, err := listings.NewAccessChecker(listingsRepo)
	if err != nil {
		logg.Error(ctx, "failed to create access checker", err)
		os.Exit(1)
	}

	syncService, err := search.NewSyncService(search.SyncServiceParams{
		Listings:  listingsRepo,
		Index:     index,
		Metrics:   metrics.NewSearchSyncMetrics(registry),
		Logger:    logg,
		BatchSize: cfg.Search.ReindexBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create search sync service", err)
		os.Exit(1)
	}
	queryService, err := search.NewQueryService(index, logg)
	if err != nil {
		logg.Error(ctx, "failed to create search query service", err)
		os.Exit(1)
	}

	promotionService, err := promotions.NewService(promotions.ServiceParams{
		Repo:     promotions.NewRepository(dbClient.DB()),
		Listings: listingsRepo,
		Tx:       dbClient,
		Access:   access,
		Syncer:   syncService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create promotions service", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	walletService, err := billing.NewWalletService(billing.NewWalletRepository(dbClient.DB()), dbClient, cfg.Billing, logg)
	if err != nil {
		logg.Error(ctx, "failed to create wallet service", err)
		os.Exit(1)
	}
	pricingService, err := billing.NewPricingService(billingRepo)
	if err != nil {
		logg.Error(ctx, "failed to create pricing service", err)
		os.Exit(1)
	}
	ordersService, err := billing.NewOrdersService(billing.OrdersServiceParams{
		Repo:   billingRepo,
		Wallet: walletService,
		Ledger: promotionService,
		Access: access,
		Syncer: syncService,
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:      redisClient,
		Gatherer:   registry,
		Search:     queryService,
		Plans:      pricingService,
		Orders:     ordersService,
		Wallet:     walletService,
		Webhooks:   ordersService,
		Promotions: promotionService,
		Reindexer:  syncService,
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}
