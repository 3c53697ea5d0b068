package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/delgo-app/delgo-backend/api/routes"
	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/carts"
	checkoutsvc "github.com/delgo-app/delgo-backend/internal/checkout"
	"github.com/delgo-app/delgo-backend/internal/dispatch"
	"github.com/delgo-app/delgo-backend/internal/earnings"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/orders"
	"github.com/delgo-app/delgo-backend/internal/products"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/internal/users"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/db"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/geocode"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/metrics"
	"github.com/delgo-app/delgo-backend/pkg/migrate"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/pubsub"
	"github.com/delgo-app/delgo-backend/pkg/redis"
)

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	schedule, err := delivery.NewFeeSchedule(cfg.Delivery)
	if err != nil {
		logg.Error(context.Background(), "failed to parse delivery fee schedule", err)
		os.Exit(1)
	}

	var geocoder geocode.Geocoder
	if cfg.GCP.GeocodingAPIKey != "" {
		client, err := geocode.NewClient(cfg.GCP.GeocodingAPIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create geocoding client", err)
			os.Exit(1)
		}
		geocoder = client
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	agentsRepo := agents.NewRepository(dbClient.DB())
	cartsRepo := carts.NewRepository(dbClient.DB())
	earningsRepo := earnings.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	shipmentsRepo := shipments.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	notificationsService, err := notifications.NewService(notificationsRepo, logg)
	requireService(logg, "notifications", err)

	agentsService, err := agents.NewService(agentsRepo, logg)
	requireService(logg, "agents", err)

	earningsService, err := earnings.NewService(earningsRepo, agentsRepo, schedule, outboxService, logg)
	requireService(logg, "earnings", err)

	shipmentsService, err := shipments.NewService(
		dbClient,
		shipmentsRepo,
		ordersRepo,
		agentsRepo,
		earningsService,
		notificationsService,
		outboxService,
		redisClient,
		cfg.OTP,
		dispatchMetrics,
		logg,
	)
	requireService(logg, "shipments", err)

	dispatchService, err := dispatch.NewService(
		dbClient,
		shipmentsRepo,
		agentsRepo,
		notificationsService,
		outboxService,
		dispatchMetrics,
		logg,
	)
	requireService(logg, "dispatch", err)

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		cartsRepo,
		productsRepo,
		usersRepo,
		ordersRepo,
		shipmentsRepo,
		geocoder,
		schedule,
		notificationsService,
		outboxService,
		dispatchMetrics,
		logg,
	)
	requireService(logg, "checkout", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Checkout:      checkoutService,
			Shipments:     shipmentsService,
			Dispatch:      dispatchService,
			Agents:        agentsService,
			Earnings:      earningsService,
			Notifications: notificationsService,
			DB:            dbClient,
			Redis:         redisClient,
			Broker:        pubsubClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
