package orders

import (
	"fmt"
	"strings"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/suppliers"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
)

// OrderEvent is a marketplace order status change.
type OrderEvent struct {
	OrderID    string `json:"orderId"`
	ShopID     int64  `json:"shopId"`
	Status     string `json:"status"`
	UpdateTime int64  `json:"updateTime,omitempty"`
}

// OrderingKey keeps every event of one order on one ordered stream.
func (e OrderEvent) OrderingKey() string {
	return fmt.Sprintf("%d-%s", e.ShopID, e.OrderID)
}

func (e OrderEvent) validate() error {
	if strings.TrimSpace(e.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if e.ShopID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	return nil
}

// ReadyToShip reports whether the event triggers fan-out.
func (e OrderEvent) ReadyToShip() bool {
	return e.Status == shopee.OrderStatusReadyToShip
}

// Step names a supplier group step.
type Step string

const (
	StepStock      Step = "stock"
	StepLedger     Step = "ledger"
	StepObligation Step = "obligation"
)

// Outcome is what a step did on this run.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// StepResult reports one step of a supplier group.
type StepResult struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
	// Applied counts the writes made on this run.
	Applied int    `json:"applied"`
	Error   string `json:"error,omitempty"`
	err     error
}

// Err returns the step failure, if any.
func (s StepResult) Err() error { return s.err }

// GroupResult reports the fan-out of one supplier group.
type GroupResult struct {
	SupplierID string       `json:"supplierId"`
	PaymentID  string       `json:"paymentId"`
	Lines      int          `json:"lines"`
	Steps      []StepResult `json:"steps"`
	// AlreadyCompleted is set when a previous delivery finished this group.
	AlreadyCompleted bool `json:"alreadyCompleted"`
	err              error
}

// Err returns the group failure, if any.
func (g GroupResult) Err() error { return g.err }

// Step returns the result of the named step, if it ran.
func (g GroupResult) Step(step Step) (StepResult, bool) {
	for _, s := range g.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

// SkipReason explains why an order line was left out of fan-out.
type SkipReason string

const (
	SkipDecodeFailed     SkipReason = "decode_failed"
	SkipProductNotFound  SkipReason = "product_not_found"
	SkipSellerNotFound   SkipReason = "seller_not_found"
	SkipNoStockBinding   SkipReason = "no_stock_binding"
	SkipAmbiguousBinding SkipReason = "ambiguous_binding"
)

// SkippedLine is an order line that was dropped with a warning.
type SkippedLine struct {
	Index  int        `json:"index"`
	SKU    string     `json:"sku,omitempty"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// ProcessResult is the outcome of ProcessOrder.
type ProcessResult struct {
	OrderID      string        `json:"orderId"`
	ShopID       int64         `json:"shopId"`
	SellerID     string        `json:"sellerId,omitempty"`
	Processed    bool          `json:"processed"`
	Groups       []GroupResult `json:"groups"`
	SkippedLines []SkippedLine `json:"skippedLines"`
}

// resolvedLine is an order line bound to its product, supplier and seller.
type resolvedLine struct {
	key       string
	index     int
	line      shopee.OrderLine
	productID string
	binding   *suppliers.StockBinding
}

func lineKey(index int, sku string) string {
	return fmt.Sprintf("%d#%s", index, sku)
}
