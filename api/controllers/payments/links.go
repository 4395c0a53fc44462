package payments

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/responses"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/validators"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/paymentlinks"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

type createPaymentLinkRequest struct {
	PaymentIDs  []string        `json:"payment_ids" validate:"required,min=1,unique,dive,required"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type paymentLinkResponse struct {
	LinkID      string     `json:"link_id"`
	SellerID    string     `json:"seller_id"`
	PaymentIDs  []string   `json:"payment_ids"`
	TotalAmount string     `json:"total_amount"`
	CheckoutURL string     `json:"checkout_url"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SellerCreatePaymentLink consolidates pending obligations into one checkout.
func SellerCreatePaymentLink(svc paymentlinks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment link service unavailable"))
			return
		}
		sellerID, err := sellerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.CreateLink(r.Context(), sellerID, payload.PaymentIDs, payload.TotalAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toLinkResponse(link))
	}
}

// SellerGetPaymentLink returns one link of the seller.
func SellerGetPaymentLink(svc paymentlinks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment link service unavailable"))
			return
		}
		sellerID, err := sellerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		linkID := validators.SanitizeString(chi.URLParam(r, "linkId"), 64)

		link, err := svc.GetLink(r.Context(), sellerID, linkID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLinkResponse(link))
	}
}

func toLinkResponse(link *paymentlinks.Link) paymentLinkResponse {
	return paymentLinkResponse{
		LinkID:      link.LinkID,
		SellerID:    link.SellerID,
		PaymentIDs:  link.PaymentIDs,
		TotalAmount: link.TotalAmount.StringFixed(2),
		CheckoutURL: link.CheckoutURL,
		Status:      string(link.Status),
		CreatedAt:   link.CreatedAt.UTC(),
		CompletedAt: link.CompletedAt,
	}
}

func sellerIDParam(r *http.Request) (string, error) {
	sellerID := validators.SanitizeString(chi.URLParam(r, "sellerId"), 64)
	if sellerID == "" || strings.ContainsAny(sellerID, "#/") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "seller id is invalid")
	}
	return sellerID, nil
}
