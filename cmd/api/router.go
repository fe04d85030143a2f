package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/app"
	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/checkout"
	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/health"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/lock"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/ratelimit"
	"github.com/noah-isme/backend-koperasi/internal/report"
	"github.com/noah-isme/backend-koperasi/internal/security"
	"github.com/noah-isme/backend-koperasi/internal/settings"
	"github.com/noah-isme/backend-koperasi/internal/shipping"
)

// routerOptions carries the ambient pieces main builds once per process.
type routerOptions struct {
	HTTPMetrics    *obs.HTTPMetrics
	TracingEnabled bool
	// Extra mounts operational endpoints (metrics, pprof) before the API routes.
	Extra func(chi.Router)
}

func newRouter(cfg *config.Config, logger zerolog.Logger, deps *app.Dependencies, opts routerOptions) (http.Handler, error) {
	settingsSvc := &settings.Service{Store: deps.Store, Logger: logger}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  deps.Store,
		Cache:  catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc, Fees: settingsSvc})

	notifiers := []events.Notifier{events.LogNotifier{Logger: logger}}
	if deps.Tasks != nil {
		notifiers = append(notifiers, inventory.LowStockNotifier{
			Thresholds: settingsSvc,
			Queue:      inventory.AsynqEnqueuer{Client: deps.Tasks, Queue: cfg.TaskQueue},
			Logger:     logger,
		})
	}
	bus := &events.Bus{Store: deps.Store, Notifiers: notifiers}

	submitter := &order.Submitter{Store: deps.Store, Events: bus, Cache: catalogSvc, Logger: logger}
	checkoutHandler := &checkout.Handler{Svc: &checkout.Service{Orders: submitter, Settings: settingsSvc}}
	orderHandler := &order.Handler{Store: deps.Store}

	shipSvc := &shipping.Service{Store: deps.Store, Events: bus, Cache: catalogSvc, Logger: logger}
	shipHandler := &shipping.Handler{Svc: shipSvc}
	shipWebhook := shipping.Webhook{Svc: shipSvc, Replay: deps.Redis, ReplayTTL: cfg.ShippingWebhookReplayTTL, Secret: cfg.ShippingWebhookSecret}

	inventorySvc := &inventory.Service{Store: deps.Store, Thresholds: settingsSvc, Events: bus, Cache: catalogSvc, Logger: logger}
	inventoryHandler := &inventory.Handler{Svc: inventorySvc, DefaultRange: cfg.ReportDefaultRange()}

	settingsHandler := &settings.Handler{Svc: settingsSvc}
	reportHandler := &report.Handler{Svc: &report.Service{
		Store:        deps.Store,
		Thresholds:   settingsSvc,
		R:            deps.Redis,
		TTL:          cfg.ReportCacheTTL,
		Lock:         &lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL:      30 * time.Second,
		DefaultRange: cfg.ReportDefaultRange(),
	}}

	submitLimiter, err := ratelimit.New(cfg.CheckoutRateLimit, deps.Redis, "koperasi:rl:submit")
	if err != nil {
		return nil, err
	}
	limit := ratelimit.Handler{
		Limiter: submitLimiter,
		Key:     ratelimit.KeyByCaller,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}.Middleware
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if opts.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", common.HeaderUserID, common.HeaderUserRole},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(common.GatewayIdentity)

	if opts.Extra != nil {
		opts.Extra(r)
	}

	healthHandler := health.Handler{
		Checker:      deps,
		StoreTimeout: cfg.HealthStoreTimeout,
		RedisTimeout: cfg.HealthRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/lookup", catalogHandler.Lookup)
		v.Get("/products/{id}", catalogHandler.ProductDetail)
		v.Post("/cart/quote", catalogHandler.Quote)

		v.Group(func(c chi.Router) {
			c.Use(common.RequireRole(common.RoleCustomer))
			c.With(limit, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
			c.Post("/orders/{id}/cancel", shipHandler.Cancel)
		})

		v.Group(func(o chi.Router) {
			o.Use(common.RequireRole(common.RoleCustomer, common.RoleAdmin, common.RoleCashier))
			o.Get("/orders", orderHandler.List)
			o.Get("/orders/{id}", orderHandler.Get)
		})

		v.With(common.RequireRole(common.RoleCashier, common.RoleAdmin), limit, idem.Middleware).
			Post("/pos/orders", checkoutHandler.POSOrder)

		v.Route("/shipping", func(s chi.Router) {
			// courier systems authenticate by signature, not gateway identity
			s.Post("/webhook/{courier}", shipWebhook.Handle)
			s.Group(func(c chi.Router) {
				c.Use(common.RequireRole(common.RoleShipping))
				c.Get("/orders", shipHandler.CourierOrders)
				c.Patch("/orders/{id}/status", shipHandler.CourierPatchStatus)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Group(func(p chi.Router) {
				p.Use(common.RequireRole(common.RoleAdmin, common.RoleSupplier))
				p.Post("/products", catalogHandler.Create)
				p.Put("/products/{id}", catalogHandler.Update)
				p.Delete("/products/{id}", catalogHandler.Delete)
				p.Get("/inventory/low-stock", inventoryHandler.LowStock)
			})
			admin.Group(func(a chi.Router) {
				a.Use(common.RequireRole(common.RoleAdmin))
				a.With(idem.Middleware).Post("/purchases", inventoryHandler.RecordPurchase)
				a.Get("/purchases", inventoryHandler.ListPurchases)
				a.Get("/settings", settingsHandler.Get)
				a.Put("/settings", settingsHandler.Put)
				a.Post("/orders/{id}/assign", shipHandler.Assign)
				a.Patch("/orders/{id}/status", shipHandler.PatchStatus)
				a.Get("/reports/sales", reportHandler.Sales)
				a.Get("/reports/financial", reportHandler.Financial)
				a.Get("/reports/profit-loss", reportHandler.ProfitLoss)
				a.Get("/reports/purchases", reportHandler.Purchases)
				a.Get("/reports/inventory", reportHandler.Inventory)
			})
		})
	})
	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
