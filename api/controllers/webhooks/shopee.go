package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/thiagodiasb91/drop-shop-site-sub000/api/responses"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/orders"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
)

const maxShopeePushBytes = 1 << 20

// ShopeePushConfig holds what is needed to authenticate pushes.
type ShopeePushConfig struct {
	CallbackURL string
	PartnerKey  string
	SkipVerify  bool
}

type orderDispatcher interface {
	Dispatch(ctx context.Context, event orders.OrderEvent) error
}

// ShopeePush accepts marketplace pushes. Heartbeats are acknowledged without
// work; order status pushes are handed to the order dispatcher.
func ShopeePush(dispatcher orderDispatcher, cfg ShopeePushConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if dispatcher == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order dispatcher unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxShopeePushBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !cfg.SkipVerify {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopee signature missing"))
				return
			}
			if !shopee.VerifyPush(cfg.CallbackURL, payload, auth, cfg.PartnerKey) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid shopee signature"))
				return
			}
		}

		push, err := shopee.DecodePush(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"push_code": push.Code, "shop_id": push.ShopID})
		}

		switch push.Code {
		case shopee.PushCodeHeartbeat:
			responses.WriteSuccess(w, map[string]string{"status": "ok"})
			return
		case shopee.PushCodeOrderStatus:
		default:
			if logg != nil {
				logg.Info(ctx, "shopee push ignored")
			}
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		status, err := push.OrderStatus()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		event := orders.OrderEvent{
			OrderID:    status.OrderSN,
			ShopID:     push.ShopID,
			Status:     status.Status,
			UpdateTime: status.UpdateTime,
		}
		if err := dispatcher.Dispatch(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{"order_id": event.OrderID, "status": event.Status}), "shopee order push accepted")
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
