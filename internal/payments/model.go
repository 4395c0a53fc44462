package payments

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
)

var paymentNamespace = uuid.MustParse("7a9729c8-3d8a-4880-b9b1-58be56a543dc")

// PaymentID derives the obligation id from its natural key, so every attempt
// to record the same (seller, supplier, order) lands on the same item.
func PaymentID(sellerID, supplierID, orderID string) string {
	return uuid.NewSHA1(paymentNamespace, []byte(strings.Join([]string{sellerID, supplierID, orderID}, "|"))).String()
}

// Line is one consolidated order line owed to the supplier.
type Line struct {
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal is UnitPrice x Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Obligation records that a seller owes a supplier for one order.
type Obligation struct {
	PaymentID    string              `json:"paymentId"`
	SellerID     string              `json:"sellerId"`
	SupplierID   string              `json:"supplierId"`
	SupplierName string              `json:"supplierName"`
	OrderID      string              `json:"orderId"`
	ShopID       int64               `json:"shopId"`
	Lines        []Line              `json:"lines"`
	TotalAmount  decimal.Decimal     `json:"totalAmount"`
	Status       enums.PaymentStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`

	record *itemstore.Record
}

// NewObligationInput is everything the fan-out knows about one supplier group.
type NewObligationInput struct {
	SellerID     string
	SupplierID   string
	SupplierName string
	OrderID      string
	ShopID       int64
	Lines        []Line
}

// NewObligation builds a pending obligation whose total is the sum of its lines.
func NewObligation(input NewObligationInput, now time.Time) *Obligation {
	total := decimal.Zero
	lines := make([]Line, len(input.Lines))
	copy(lines, input.Lines)
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return &Obligation{
		PaymentID:    PaymentID(input.SellerID, input.SupplierID, input.OrderID),
		SellerID:     input.SellerID,
		SupplierID:   input.SupplierID,
		SupplierName: input.SupplierName,
		OrderID:      input.OrderID,
		ShopID:       input.ShopID,
		Lines:        lines,
		TotalAmount:  total,
		Status:       enums.PaymentStatusPending,
		CreatedAt:    now,
	}
}

// IsPending reports whether the obligation can still be paid.
func (o *Obligation) IsPending() bool {
	return o.Status == enums.PaymentStatusPending
}
