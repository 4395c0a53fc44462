package ledger

import (
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
)

// StockMovement is one immutable kardex entry. Quantity is signed: remove
// entries are negative, set entries carry the absolute stock level.
type StockMovement struct {
	ID         string                       `json:"id"`
	SKU        string                       `json:"sku"`
	ProductID  string                       `json:"productId"`
	Quantity   int64                        `json:"quantity"`
	Operation  enums.StockMovementOperation `json:"operation"`
	Timestamp  time.Time                    `json:"timestamp"`
	SupplierID string                       `json:"supplierId"`
	OrderID    string                       `json:"orderId,omitempty"`
	ShopID     int64                        `json:"shopId,omitempty"`
}

// AppendInput captures what a caller knows about a stock movement.
type AppendInput struct {
	// ID, when set, is used as the movement id instead of a fresh one. An
	// entry already stored under it is returned unchanged.
	ID         string
	SKU        string
	ProductID  string
	Quantity   int64
	Operation  enums.StockMovementOperation
	SupplierID string
	OrderID    string
	ShopID     int64
}
