package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dariovega/shopstream-backend/api/routes"
	"github.com/dariovega/shopstream-backend/internal/catalog"
	"github.com/dariovega/shopstream-backend/internal/checkout"
	"github.com/dariovega/shopstream-backend/internal/inventory"
	"github.com/dariovega/shopstream-backend/internal/notifications"
	"github.com/dariovega/shopstream-backend/internal/orders"
	"github.com/dariovega/shopstream-backend/internal/pricing"
	paymentwebhook "github.com/dariovega/shopstream-backend/internal/webhooks/payment"
	"github.com/dariovega/shopstream-backend/pkg/config"
	"github.com/dariovega/shopstream-backend/pkg/db"
	"github.com/dariovega/shopstream-backend/pkg/logger"
	"github.com/dariovega/shopstream-backend/pkg/migrate"
	"github.com/dariovega/shopstream-backend/pkg/pubsub"
	"github.com/dariovega/shopstream-backend/pkg/redis"
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

	var notifier notifications.Publisher = notifications.NoopPublisher{}
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier, err = notifications.NewPublisher(psClient.NotificationPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create notification publisher", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "gcp project not configured, notifications disabled")
	}

	defaultTaxRate, err := decimal.NewFromString(cfg.Checkout.DefaultTaxRate)
	if err != nil {
		logg.Error(context.Background(), "invalid default tax rate", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(dbClient.DB(), redisClient, cfg.Checkout.VariantCacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ledger, err := inventory.NewService(dbClient.DB(), catalogSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	backlog := inventory.NewBacklog(dbClient.DB())
	calc := pricing.NewCalculator(pricing.DefaultShippingTable(), pricing.DefaultTaxTable(defaultTaxRate))

	checkoutSvc, err := checkout.NewService(
		dbClient,
		ordersRepo,
		ledger,
		catalogSvc,
		calc,
		backlog,
		notifier,
		checkout.Config{Currency: cfg.Checkout.DefaultCurrency},
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookSvc, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		OrdersRepo: ordersRepo,
		Ledger:     ledger,
		Canceller:  checkoutSvc,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, checkoutSvc, ordersRepo, webhookSvc, webhookGuard),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
