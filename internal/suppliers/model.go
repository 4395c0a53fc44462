package suppliers

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
)

// ErrAmbiguousBinding means more than one supplier is bound to a product SKU.
var ErrAmbiguousBinding = errors.New("more than one supplier bound to sku")

// Seller owns a marketplace shop.
type Seller struct {
	SellerID string `json:"sellerId"`
	ShopID   int64  `json:"shopId"`
	Name     string `json:"name,omitempty"`
}

// Supplier is the supplier profile used for denormalized names.
type Supplier struct {
	SupplierID string `json:"supplierId"`
	Name       string `json:"name"`
}

// StockBinding is one supplier's offer for a product SKU: its production
// price and the current stock counter.
type StockBinding struct {
	ProductID       string          `json:"productId"`
	SKU             string          `json:"sku"`
	SupplierID      string          `json:"supplierId"`
	SupplierName    string          `json:"-"`
	ProductionPrice decimal.Decimal `json:"productionPrice"`
	Quantity        int64           `json:"quantity"`
	Version         int64           `json:"-"`

	// AppliedKeys are the most recent decrements folded into Quantity, so a
	// redelivered order line is not subtracted twice.
	AppliedKeys []string `json:"appliedKeys,omitempty"`

	record *itemstore.Record
}

type productDoc struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
}
