package shipments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

var shipmentNamespace = uuid.MustParse("f85ad041-11d1-4c5d-b481-8401a4392dcd")

// ShipmentID derives the shipment id from the paid obligation: one shipment per payment.
func ShipmentID(paymentID string) string {
	return uuid.NewSHA1(shipmentNamespace, []byte(paymentID)).String()
}

// Shipment asks a supplier to ship a paid obligation.
type Shipment struct {
	ShipmentID     string               `json:"shipmentId"`
	SupplierID     string               `json:"supplierId"`
	SellerID       string               `json:"sellerId"`
	PaymentID      string               `json:"paymentId"`
	OrderID        string               `json:"orderId"`
	TransactionNSU string               `json:"transactionNsu"`
	CaptureMethod  string               `json:"captureMethod,omitempty"`
	ReceiptURL     string               `json:"receiptUrl,omitempty"`
	PaidAmount     decimal.Decimal      `json:"paidAmount"`
	Installments   int                  `json:"installments"`
	Status         enums.ShipmentStatus `json:"status"`
	ShippedAt      *time.Time           `json:"shippedAt"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Repository stores shipments under the supplier partition.
type Repository interface {
	// Create persists the shipment, reporting false if it already exists.
	Create(ctx context.Context, shipment *Shipment) (bool, error)
	ListBySupplier(ctx context.Context, supplierID string) ([]Shipment, error)
}

type repository struct {
	store itemstore.Store
}

// NewRepository returns a shipment repository bound to the provided item store.
func NewRepository(store itemstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Create(ctx context.Context, shipment *Shipment) (bool, error) {
	if shipment.SupplierID == "" || shipment.PaymentID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "shipment requires supplier and payment ids")
	}
	if shipment.ShipmentID == "" {
		shipment.ShipmentID = ShipmentID(shipment.PaymentID)
	}
	if shipment.Status == "" {
		shipment.Status = enums.ShipmentStatusAwaitingShipment
	}
	_, err := r.store.Create(ctx, itemstore.ShipmentKey(shipment.SupplierID, shipment.ShipmentID), shipment)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) ListBySupplier(ctx context.Context, supplierID string) ([]Shipment, error) {
	pk, prefix := itemstore.ShipmentPrefix(supplierID)
	records, err := r.store.Query(ctx, pk, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Shipment, 0, len(records))
	for i := range records {
		var s Shipment
		if err := records[i].Decode(&s); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode shipment")
		}
		out = append(out, s)
	}
	return out, nil
}
