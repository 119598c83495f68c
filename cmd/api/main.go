package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/threshingfloor/roastery-backend/api"
	"github.com/threshingfloor/roastery-backend/api/routes"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/auth"
	"github.com/threshingfloor/roastery-backend/internal/availability"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/internal/catalog"
	"github.com/threshingfloor/roastery-backend/internal/orders"
	"github.com/threshingfloor/roastery-backend/internal/users"
	"github.com/threshingfloor/roastery-backend/pkg/auth/session"
	"github.com/threshingfloor/roastery-backend/pkg/bootstrap"
	"github.com/threshingfloor/roastery-backend/pkg/env"
	"github.com/threshingfloor/roastery-backend/pkg/instance"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "api")
	if err != nil {
		os.Exit(1)
	}
	defer proc.Close()
	cfg, logg, dbClient := proc.Config, proc.Logger, proc.DB

	redisClient, err := proc.Redis(context.Background())
	if err != nil {
		proc.Fatal(context.Background(), "redis unavailable", err)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		proc.Fatal(context.Background(), "failed to create session manager", err)
	}

	policy := access.NewPolicy(cfg.Store.AdminEmail)
	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:    catalog.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Policy:  policy,
		Metrics: storeMetrics,
		Logger:  logg,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create catalog service", err)
	}

	calendar, err := availability.NewService(availability.ServiceParams{
		Repo:     availability.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Policy:   policy,
		Location: cfg.Store.Location(),
		LeadTime: cfg.Store.BookingLead,
		Metrics:  storeMetrics,
		Logger:   logg,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create availability service", err)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Store:   redisClient,
		Catalog: catalogService,
		TTL:     cfg.Store.CartTTL,
		Logger:  logg,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cart service", err)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Policy:   policy,
		Carts:    cartService,
		Catalog:  catalogService,
		Calendar: calendar,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Store:    cfg.Store,
		Metrics:  storeMetrics,
		Logger:   logg,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create orders service", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Policy:         policy,
		Carts:          cartService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create auth service", err)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(routes.Deps{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		RedisPinger:  redisClient,
		Sessions:     sessionManager,
		Policy:       policy,
		Auth:         authService,
		Catalog:      catalogService,
		Availability: calendar,
		Cart:         cartService,
		Orders:       ordersService,
		Metrics:      metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:     prometheus.DefaultGatherer,
	})

	if err := api.NewServer(addr, handler, logg).Run(ctx); err != nil {
		proc.Fatal(ctx, "api server stopped unexpectedly", err)
	}
	logg.Info(ctx, "api server stopped")
}
