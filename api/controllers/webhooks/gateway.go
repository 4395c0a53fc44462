package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/responses"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/validators"
	gatewaywebhook "github.com/thiagodiasb91/drop-shop-site-sub000/internal/webhooks/gateway"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

const gatewaySecretHeader = "X-Webhook-Secret"

type GatewayWebhookService interface {
	ReconcileWebhook(ctx context.Context, confirmation gatewaywebhook.PaymentConfirmation) (*gatewaywebhook.ReconcileResult, error)
}

type gatewayWebhookGuard interface {
	CheckAndMark(ctx context.Context, transactionRef string) (bool, error)
	Delete(ctx context.Context, transactionRef string) error
}

// gatewayPaymentRequest is the gateway payment notice. Amounts are in cents.
type gatewayPaymentRequest struct {
	InvoiceSlug    string `json:"invoice_slug"`
	Amount         int64  `json:"amount" validate:"gte=0"`
	PaidAmount     int64  `json:"paid_amount" validate:"gte=0"`
	Installments   int    `json:"installments" validate:"gte=0"`
	CaptureMethod  string `json:"capture_method"`
	TransactionNSU string `json:"transaction_nsu" validate:"required"`
	OrderNSU       string `json:"order_nsu" validate:"required"`
	ReceiptURL     string `json:"receipt_url"`
}

type gatewayPaymentResponse struct {
	LinkID           string                             `json:"link_id"`
	Succeeded        int                                `json:"succeeded"`
	AlreadyProcessed int                                `json:"already_processed"`
	Failed           int                                `json:"failed"`
	Failures         []gatewaywebhook.ObligationFailure `json:"failures,omitempty"`
	Duplicate        bool                               `json:"duplicate,omitempty"`
}

// GatewayWebhook reconciles a paid checkout link.
func GatewayWebhook(svc GatewayWebhookService, guard gatewayWebhookGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(gatewaySecretHeader)), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var payload gatewayPaymentRequest
		if err := validators.DecodeJSONBodyLenient(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txRef := strings.TrimSpace(payload.TransactionNSU)

		alreadyProcessed, err := guard.CheckAndMark(ctx, txRef)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, gatewayPaymentResponse{Duplicate: true})
			return
		}

		result, err := svc.ReconcileWebhook(ctx, gatewaywebhook.PaymentConfirmation{
			Token:          strings.TrimSpace(payload.OrderNSU),
			TransactionNSU: txRef,
			InvoiceSlug:    payload.InvoiceSlug,
			CaptureMethod:  payload.CaptureMethod,
			ReceiptURL:     payload.ReceiptURL,
			PaidAmount:     decimal.New(payload.PaidAmount, -2),
			Installments:   payload.Installments,
		})
		if err != nil {
			_ = guard.Delete(ctx, txRef)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := gatewayPaymentResponse{
			LinkID:           result.LinkID,
			Succeeded:        result.Succeeded,
			AlreadyProcessed: result.AlreadyProcessed,
			Failed:           result.Failed,
			Failures:         result.Failures,
		}
		if result.Failed > 0 {
			// a 503 makes the gateway redeliver; settled obligations are skipped then
			_ = guard.Delete(ctx, txRef)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "some payments could not be reconciled").WithDetails(resp))
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
