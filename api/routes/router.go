package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thiagodiasb91/drop-shop-site-sub000/api/controllers"
	paymentcontrollers "github.com/thiagodiasb91/drop-shop-site-sub000/api/controllers/payments"
	webhookcontrollers "github.com/thiagodiasb91/drop-shop-site-sub000/api/controllers/webhooks"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/middleware"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/orders"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/paymentlinks"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/config"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/redis"
)

type webhookGuard interface {
	CheckAndMark(ctx context.Context, transactionRef string) (bool, error)
	Delete(ctx context.Context, transactionRef string) error
}

// Deps are the collaborators the HTTP surface needs. Nil pingers are left
// out of the readiness probe.
type Deps struct {
	DB     controllers.Pinger
	Redis  controllers.Pinger
	PubSub controllers.Pinger

	Idempotency    redis.IdempotencyStore
	Dispatcher     orders.Dispatcher
	PaymentLinks   paymentlinks.Service
	Obligations    payments.Repository
	GatewayService webhookcontrollers.GatewayWebhookService
	GatewayGuard   webhookGuard
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":     deps.DB,
			"redis":  deps.Redis,
			"pubsub": deps.PubSub,
		}))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shopee", webhookcontrollers.ShopeePush(deps.Dispatcher, webhookcontrollers.ShopeePushConfig{
			CallbackURL: cfg.Shopee.PushURL,
			PartnerKey:  cfg.Shopee.PartnerKey,
			SkipVerify:  cfg.Shopee.SkipPushVerify,
		}, logg))
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(deps.GatewayService, deps.GatewayGuard, cfg.Gateway.WebhookSecret, logg))
	})

	r.Route("/api/v1/sellers/{sellerId}", func(r chi.Router) {
		r.Get("/payments", paymentcontrollers.SellerListPayments(deps.Obligations, logg))
		r.With(middleware.Idempotency(deps.Idempotency, logg)).
			Post("/payment-links", paymentcontrollers.SellerCreatePaymentLink(deps.PaymentLinks, logg))
		r.Get("/payment-links/{linkId}", paymentcontrollers.SellerGetPaymentLink(deps.PaymentLinks, logg))
	})

	return r
}
