package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/threshingfloor/roastery-backend/api"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/availability"
	"github.com/threshingfloor/roastery-backend/internal/cron"
	"github.com/threshingfloor/roastery-backend/pkg/bootstrap"
	"github.com/threshingfloor/roastery-backend/pkg/instance"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "cron-worker")
	if err != nil {
		os.Exit(1)
	}
	defer proc.Close()
	cfg, logg, dbClient := proc.Config, proc.Logger, proc.DB

	redisClient, err := proc.Redis(context.Background())
	if err != nil {
		proc.Fatal(context.Background(), "redis unavailable", err)
	}

	calendar, err := availability.NewService(availability.ServiceParams{
		Repo:     availability.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Policy:   access.NewPolicy(cfg.Store.AdminEmail),
		Location: cfg.Store.Location(),
		LeadTime: cfg.Store.BookingLead,
		Logger:   logg,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create availability service", err)
	}

	slotJob, err := cron.NewSlotPruneJob(cron.SlotPruneJobParams{
		Logger:    logg,
		Calendar:  calendar,
		Retention: cfg.Cron.SlotRetention,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create slot prune job", err)
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:              logg,
		Repository:          outbox.NewRepository(dbClient.DB()),
		DeadLetters:         outbox.NewDLQRepository(dbClient.DB()),
		Retention:           cfg.Cron.OutboxRetention,
		DeadLetterRetention: cfg.Cron.DeadLetterRetention,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create outbox retention job", err)
	}

	lock, err := cron.NewRedisLock(cron.RedisLockParams{
		Store:  redisClient,
		Key:    redisClient.LockKey("cron-worker:" + envOrLocal(cfg.App.Env)),
		TTL:    cfg.Cron.Interval,
		Worker: instance.ID(),
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron lock", err)
	}

	registry := cron.NewRegistry(slotJob, outboxJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")
	api.ServeMetrics(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
