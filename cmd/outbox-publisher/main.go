package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/threshingfloor/roastery-backend/api"
	"github.com/threshingfloor/roastery-backend/pkg/bootstrap"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/registry"
	"github.com/threshingfloor/roastery-backend/pkg/pubsub"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "outbox-publisher")
	if err != nil {
		os.Exit(1)
	}
	defer proc.Close()
	cfg, logg, dbClient := proc.Config, proc.Logger, proc.DB

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		proc.Fatal(context.Background(), "failed to build event registry", err)
	}

	publisher, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		proc.Fatal(context.Background(), "failed to bootstrap pubsub", err)
	}
	proc.OnClose("pubsub", publisher.Close)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        publisher,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create outbox publisher", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"topic":       cfg.PubSub.OrdersTopic,
	})
	logg.Info(ctx, "starting outbox publisher")
	api.ServeMetrics(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down")
}
