package orders

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// OrderedPublisher publishes one message on an ordered stream.
// *pubsub.OrderedPublisher satisfies it.
type OrderedPublisher interface {
	Publish(ctx context.Context, orderingKey string, data []byte, attrs map[string]string) (string, error)
}

type queueDispatcher struct {
	pub OrderedPublisher
}

// NewQueueDispatcher sends order events to the orders topic keyed by
// shop and order, so the events of one order are consumed in order.
func NewQueueDispatcher(pub OrderedPublisher) (Dispatcher, error) {
	if pub == nil {
		return nil, fmt.Errorf("ordered publisher required")
	}
	return &queueDispatcher{pub: pub}, nil
}

func (d *queueDispatcher) Dispatch(ctx context.Context, event OrderEvent) error {
	if err := event.validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order event")
	}
	attrs := map[string]string{
		"event_type": "order_status",
		"status":     event.Status,
	}
	if _, err := d.pub.Publish(ctx, event.OrderingKey(), payload, attrs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish order event")
	}
	return nil
}

type inlineDispatcher struct {
	service Service
}

// NewInlineDispatcher runs the fan-out in the request. It is meant for local
// runs without a queue.
func NewInlineDispatcher(service Service) (Dispatcher, error) {
	if service == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &inlineDispatcher{service: service}, nil
}

func (d *inlineDispatcher) Dispatch(ctx context.Context, event OrderEvent) error {
	_, err := d.service.ProcessOrder(ctx, event)
	return err
}
