package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const defaultPublishTimeout = 10 * time.Second

// publishResult is the subset of *pubsub.PublishResult the publisher needs.
type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// publisher is the subset of *pubsub.Publisher the ordered publisher needs.
type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

// OrderedPublisher publishes messages that share an ordering key in order and
// waits for the server ack. A failed publish pauses its key inside the
// client; the key is resumed right away so the caller's retry can go through.
type OrderedPublisher struct {
	pub     publisher
	timeout time.Duration
}

// NewOrderedPublisher wraps a topic publisher. Message ordering is switched on.
func NewOrderedPublisher(p *pubsub.Publisher) (*OrderedPublisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	p.EnableMessageOrdering = true
	return &OrderedPublisher{pub: &gcpPublisher{Publisher: p}, timeout: defaultPublishTimeout}, nil
}

// Publish sends data with the given ordering key and attributes and returns
// the server-assigned message id.
func (o *OrderedPublisher) Publish(ctx context.Context, orderingKey string, data []byte, attrs map[string]string) (string, error) {
	if o == nil || o.pub == nil {
		return "", errors.New("ordered publisher not initialized")
	}
	if orderingKey == "" {
		return "", errors.New("ordering key is required")
	}

	publishCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result := o.pub.Publish(publishCtx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	})
	if result == nil {
		return "", fmt.Errorf("publisher returned nil for key %s", orderingKey)
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		o.pub.ResumePublish(orderingKey)
		return "", fmt.Errorf("publish ordering key %s: %w", orderingKey, err)
	}
	return id, nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
