package orders

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"go.uber.org/multierr"
)

// Consumer feeds order events from the orders subscription into ProcessOrder.
type Consumer struct {
	service      Service
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds the order fan-out consumer.
func NewConsumer(service Service, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{service: service, subscription: subscription, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// process acks poison messages and business failures; only retryable errors
// are nacked so the queue redelivers them.
func (c *Consumer) process(ctx context.Context, messageID string, data []byte) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	var event OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode order event", err)
		return processResult{ack: true}
	}

	result, err := c.service.ProcessOrder(logCtx, event)
	if err != nil {
		logCtx = c.logg.WithFields(logCtx, map[string]any{
			"order_id": event.OrderID,
			"shop_id":  event.ShopID,
			"code":     string(pkgerrors.CodeOf(err)),
		})
		if shouldRedeliver(err) {
			c.logg.Warn(logCtx, "order fan-out failed, redelivering")
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "order fan-out failed permanently", err)
		return processResult{ack: true}
	}

	if result != nil && !result.Processed {
		c.logg.Info(c.logg.WithField(logCtx, "order_id", event.OrderID), "order event ignored")
	}
	return processResult{ack: true}
}

// shouldRedeliver reports whether any group failure can be fixed by another
// delivery. A conflict means another delivery holds the group right now.
func shouldRedeliver(err error) bool {
	for _, e := range multierr.Errors(err) {
		if pkgerrors.IsRetryable(e) || pkgerrors.Is(e, pkgerrors.CodeConflict) {
			return true
		}
	}
	return false
}
