package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/consumers/assignment"
	"github.com/delgo-app/delgo-backend/internal/dispatch"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/db"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/metrics"
	"github.com/delgo-app/delgo-backend/pkg/migrate"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/outbox/idempotency"
	"github.com/delgo-app/delgo-backend/pkg/pubsub"
	"github.com/delgo-app/delgo-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "dispatch-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "dispatch-worker"

	logg = logger.New(logger.Options{
		ServiceName: "dispatch-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.DispatchSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "dispatch subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "notifications service", err)

	dispatchService, err := dispatch.NewService(
		dbClient,
		shipments.NewRepository(dbClient.DB()),
		agents.NewRepository(dbClient.DB()),
		notificationsService,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	requireResource(ctx, logg, "dispatch service", err)

	consumer, err := assignment.NewConsumer(subscription, dispatchService, manager, logg)
	requireResource(ctx, logg, "assignment consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "dispatch worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "dispatch worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
