package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/texnika/texnika-backend/api/controllers"
	admincontrollers "github.com/texnika/texnika-backend/api/controllers/admin"
	billingcontrollers "github.com/texnika/texnika-backend/api/controllers/billing"
	promotioncontrollers "github.com/texnika/texnika-backend/api/controllers/promotions"
	searchcontrollers "github.com/texnika/texnika-backend/api/controllers/search"
	"github.com/texnika/texnika-backend/api/middleware"
	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/enums"
	"github.com/texnika/texnika-backend/pkg/logger"
	pkgredis "github.com/texnika/texnika-backend/pkg/redis"
)

// RedisStore backs idempotency keys and the billing rate limit.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the HTTP surface is wired to. Nil services answer 500.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	// Ready lists the dependencies pinged by /health/ready, keyed by name.
	Ready    map[string]controllers.Pinger
	Redis    RedisStore
	Gatherer prometheus.Gatherer

	Search     searchcontrollers.ListingSearcher
	Plans      billingcontrollers.PlanCatalog
	Orders     billingcontrollers.OrderService
	Wallet     billingcontrollers.WalletService
	Webhooks   billingcontrollers.WebhookHandler
	Promotions promotioncontrollers.Promoter
	Reindexer  admincontrollers.Reindexer
	DLQ        admincontrollers.DLQReader
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "api"})
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	paymentGuards := billingGuards(deps, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search/listings", searchcontrollers.SearchListings(deps.Search, logg))
		r.Get("/billing/plans", billingcontrollers.PlansList(deps.Plans, logg))
		r.Post("/billing/webhooks/mock", billingcontrollers.MockPaymentWebhook(deps.Webhooks, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/billing", func(r chi.Router) {
				r.Post("/orders", billingcontrollers.OrdersCreate(deps.Orders, logg))
				r.Get("/orders", billingcontrollers.OrdersList(deps.Orders, logg))
				r.With(paymentGuards...).Post("/orders/{orderId}/pay", billingcontrollers.OrdersPay(deps.Orders, logg))

				r.Get("/wallet", billingcontrollers.WalletGet(deps.Wallet, logg))
				r.With(paymentGuards...).Post("/wallet/topup", billingcontrollers.WalletTopUp(deps.Wallet, logg))
				r.Get("/wallet/transactions", billingcontrollers.WalletTransactions(deps.Wallet, logg))
			})

			r.Post("/promotions/listings/{listingId}", promotioncontrollers.ApplyToListing(deps.Promotions, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Post("/search/reindex", admincontrollers.SearchReindex(deps.Reindexer, logg))
				r.Get("/outbox/dlq", admincontrollers.OutboxDLQList(deps.DLQ, logg))
			})
		})
	})

	return r
}

// billingGuards wraps the pay and top-up routes. Without Redis they run unguarded.
func billingGuards(deps Deps, logg *logger.Logger) []func(http.Handler) http.Handler {
	if deps.Redis == nil {
		return nil
	}
	billing := deps.Config.Billing
	policy := middleware.NewRateLimitPolicy("billing", billing.RateLimitWindow, billing.RateLimitPerUser)
	return []func(http.Handler) http.Handler{
		middleware.UserRateLimit(policy, deps.Redis, logg),
		middleware.Idempotency(deps.Redis, billing.IdempotencyTTL, logg),
	}
}
