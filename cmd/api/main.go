package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thiagodiasb91/drop-shop-site-sub000/api/routes"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/ledger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/orders"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/paymentlinks"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/shipments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/suppliers"
	gatewaywebhook "github.com/thiagodiasb91/drop-shop-site-sub000/internal/webhooks/gateway"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/config"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/db"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/metrics"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/migrate"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/pubsub"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/redis"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
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
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	store := itemstore.NewGormStore(dbClient.DB())
	obligations := payments.NewRepository(store)
	links := paymentlinks.NewRepository(store)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	linkService, err := paymentlinks.NewService(paymentlinks.ServiceParams{
		Links:       links,
		Obligations: obligations,
		Checkout: paymentlinks.CheckoutConfig{
			BaseURL:     cfg.Gateway.CheckoutBaseURL,
			Handle:      cfg.Gateway.Handle,
			RedirectURL: cfg.Gateway.RedirectURL,
			WebhookURL:  cfg.Gateway.WebhookURL,
		},
		Logger: logg,
	})
	requireResource(ctx, logg, "payment link service", err)

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Links:            links,
		Obligations:      obligations,
		Shipments:        shipments.NewRepository(store),
		Metrics:          pipelineMetrics,
		Logger:           logg,
		PaidAmountPolicy: cfg.Gateway.Policy(),
	})
	requireResource(ctx, logg, "gateway webhook service", err)

	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Pipeline.WebhookIdempotencyTTL, "gateway-webhook")
	requireResource(ctx, logg, "gateway webhook guard", err)

	dispatcher, err := newDispatcher(cfg, logg, store, obligations, redisClient, pubsubClient, pipelineMetrics)
	requireResource(ctx, logg, "order dispatcher", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"queue_orders": cfg.FeatureFlags.QueueOrders,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:             dbClient,
			Redis:          redisClient,
			PubSub:         pubsubClient,
			Idempotency:    redisClient,
			Dispatcher:     dispatcher,
			PaymentLinks:   linkService,
			Obligations:    obligations,
			GatewayService: webhookService,
			GatewayGuard:   webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

// newDispatcher publishes order pushes to the orders topic, or runs the
// fan-out inline when queueing is disabled.
func newDispatcher(
	cfg *config.Config,
	logg *logger.Logger,
	store itemstore.Store,
	obligations payments.Repository,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	pipelineMetrics *metrics.PipelineMetrics,
) (orders.Dispatcher, error) {
	if cfg.FeatureFlags.QueueOrders {
		publisher, err := pubsub.NewOrderedPublisher(pubsubClient.OrdersPublisher())
		if err != nil {
			return nil, err
		}
		return orders.NewQueueDispatcher(publisher)
	}

	tokens, err := shopee.NewRedisTokenSource(redisClient)
	if err != nil {
		return nil, err
	}
	shopeeClient, err := shopee.NewClient(cfg.Shopee.PartnerID, cfg.Shopee.PartnerKey, tokens,
		shopee.WithHost(cfg.Shopee.Host),
		shopee.WithTimeout(cfg.Shopee.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}
	sellerCache, err := suppliers.NewRedisSellerCache(redisClient, cfg.Pipeline.SellerCacheTTL)
	if err != nil {
		return nil, err
	}
	resolver, err := suppliers.NewResolver(suppliers.ResolverParams{Store: store, Cache: sellerCache, Logger: logg})
	if err != nil {
		return nil, err
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(store))
	if err != nil {
		return nil, err
	}
	service, err := orders.NewService(orders.ServiceParams{
		Store:           store,
		Fetcher:         shopeeClient,
		Resolver:        resolver,
		Ledger:          ledgerService,
		Obligations:     obligations,
		Metrics:         pipelineMetrics,
		Logger:          logg,
		Concurrency:     cfg.Pipeline.FanOutConcurrency,
		CheckpointLease: cfg.Pipeline.CheckpointLease,
	})
	if err != nil {
		return nil, err
	}
	return orders.NewInlineDispatcher(service)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
