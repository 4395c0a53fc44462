package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/api/responses"
	"github.com/thiagodiasb91/drop-shop-site-sub000/api/validators"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

type obligationLister interface {
	ListBySeller(ctx context.Context, sellerID string, status enums.PaymentStatus) ([]payments.Obligation, error)
}

type obligationLineResponse struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Image     string `json:"image,omitempty"`
}

type obligationResponse struct {
	PaymentID    string                   `json:"payment_id"`
	SupplierID   string                   `json:"supplier_id"`
	SupplierName string                   `json:"supplier_name"`
	OrderID      string                   `json:"order_id"`
	ShopID       int64                    `json:"shop_id"`
	Lines        []obligationLineResponse `json:"lines"`
	TotalAmount  string                   `json:"total_amount"`
	Status       string                   `json:"status"`
	CreatedAt    time.Time                `json:"created_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// SellerListPayments lists the seller's payment obligations, optionally
// filtered by status.
func SellerListPayments(repo obligationLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments repository unavailable"))
			return
		}
		sellerID, err := sellerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParsePaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := repo.ListBySeller(r.Context(), sellerID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]obligationResponse, 0, len(list))
		for _, o := range list {
			out = append(out, toObligationResponse(o))
		}
		responses.WriteSuccess(w, out)
	}
}

func toObligationResponse(o payments.Obligation) obligationResponse {
	lines := make([]obligationLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, obligationLineResponse{
			ProductID: l.ProductID,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Image:     l.Image,
		})
	}
	return obligationResponse{
		PaymentID:    o.PaymentID,
		SupplierID:   o.SupplierID,
		SupplierName: o.SupplierName,
		OrderID:      o.OrderID,
		ShopID:       o.ShopID,
		Lines:        lines,
		TotalAmount:  o.TotalAmount.StringFixed(2),
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.UTC(),
		CompletedAt:  o.CompletedAt,
	}
}
