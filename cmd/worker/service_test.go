package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls++
	return f.err
}

type fakeConsumer struct {
	err     error
	started chan struct{}
}

func (f *fakeConsumer) Run(ctx context.Context) error {
	if f.started != nil {
		close(f.started)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func validParams() ServiceParams {
	return ServiceParams{
		Logger:   logger.Nop(),
		DB:       &fakePinger{},
		Redis:    &fakePinger{},
		PubSub:   &fakePinger{},
		Consumer: &fakeConsumer{},
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	tests := map[string]func(*ServiceParams){
		"logger":   func(p *ServiceParams) { p.Logger = nil },
		"db":       func(p *ServiceParams) { p.DB = nil },
		"redis":    func(p *ServiceParams) { p.Redis = nil },
		"pubsub":   func(p *ServiceParams) { p.PubSub = nil },
		"consumer": func(p *ServiceParams) { p.Consumer = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			params := validParams()
			mutate(&params)
			_, err := NewService(params)
			assert.Error(t, err)
		})
	}
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	params := validParams()
	params.Redis = &fakePinger{err: errors.New("connection refused")}
	consumer := &fakeConsumer{started: make(chan struct{})}
	params.Consumer = consumer

	svc, err := NewService(params)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	select {
	case <-consumer.started:
		t.Fatal("consumer should not start when readiness fails")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	params := validParams()
	params.Consumer = &fakeConsumer{err: errors.New("subscription deleted")}

	svc, err := NewService(params)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.EqualError(t, err, "subscription deleted")
}

func TestRunStopsOnCancel(t *testing.T) {
	params := validParams()
	consumer := &fakeConsumer{started: make(chan struct{})}
	params.Consumer = consumer

	svc, err := NewService(params)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
