package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/ledger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/orders"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/suppliers"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/config"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/db"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/instance"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/metrics"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/pubsub"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/redis"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.OrdersSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "orders subscription", errors.New("subscription not configured"))
	}

	tokens, err := shopee.NewRedisTokenSource(redisClient)
	requireResource(ctx, logg, "shopee token source", err)
	shopeeClient, err := shopee.NewClient(cfg.Shopee.PartnerID, cfg.Shopee.PartnerKey, tokens,
		shopee.WithHost(cfg.Shopee.Host),
		shopee.WithTimeout(cfg.Shopee.RequestTimeout),
	)
	requireResource(ctx, logg, "shopee client", err)

	store := itemstore.NewGormStore(dbClient.DB())

	sellerCache, err := suppliers.NewRedisSellerCache(redisClient, cfg.Pipeline.SellerCacheTTL)
	requireResource(ctx, logg, "seller cache", err)
	resolver, err := suppliers.NewResolver(suppliers.ResolverParams{Store: store, Cache: sellerCache, Logger: logg})
	requireResource(ctx, logg, "supplier resolver", err)

	ledgerService, err := ledger.NewService(ledger.NewRepository(store))
	requireResource(ctx, logg, "ledger service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Store:           store,
		Fetcher:         shopeeClient,
		Resolver:        resolver,
		Ledger:          ledgerService,
		Obligations:     payments.NewRepository(store),
		Metrics:         metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
		Logger:          logg,
		Concurrency:     cfg.Pipeline.FanOutConcurrency,
		CheckpointLease: cfg.Pipeline.CheckpointLease,
	})
	requireResource(ctx, logg, "orders service", err)

	consumer, err := orders.NewConsumer(ordersService, subscription, logg)
	requireResource(ctx, logg, "orders consumer", err)

	metricsAddr := ""
	if port := os.Getenv("PORT"); port != "" {
		metricsAddr = ":" + port
	} else if cfg.App.Port != "" {
		metricsAddr = ":" + cfg.App.Port
	}

	service, err := NewService(ServiceParams{
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		PubSub:      pubsubClient,
		Consumer:    consumer,
		MetricsAddr: metricsAddr,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"subscription": cfg.PubSub.OrdersSubscription,
	})
	logg.Info(runCtx, "order worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "order worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "order worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
