package orders

import (
	"context"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
)

// OrderDetailFetcher loads the full order from the marketplace.
type OrderDetailFetcher interface {
	GetOrderDetail(ctx context.Context, shopID int64, orderSN string) (*shopee.OrderDetail, error)
}

// Metrics receives fan-out outcomes. *metrics.PipelineMetrics satisfies it.
type Metrics interface {
	ObserveOrder(duration time.Duration, result string)
	IncSkippedLine(reason string)
	IncStep(step, outcome string)
}

// Dispatcher hands an order event to the fan-out, either through the queue
// or inline.
type Dispatcher interface {
	Dispatch(ctx context.Context, event OrderEvent) error
}

type nopMetrics struct{}

func (nopMetrics) ObserveOrder(time.Duration, string) {}
func (nopMetrics) IncSkippedLine(string)              {}
func (nopMetrics) IncStep(string, string)             {}
