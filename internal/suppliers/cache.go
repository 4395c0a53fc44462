package suppliers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/redis"
)

// SellerCache memoizes seller-by-shop lookups.
type SellerCache interface {
	Get(ctx context.Context, shopID int64) (*Seller, bool, error)
	Set(ctx context.Context, seller Seller) error
	Invalidate(ctx context.Context, shopID int64) error
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SellerKey(shopID int64) string
}

type redisSellerCache struct {
	store redisStore
	ttl   time.Duration
}

// NewRedisSellerCache stores sellers as JSON under the shop key with a TTL.
func NewRedisSellerCache(store redisStore, ttl time.Duration) (SellerCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisSellerCache{store: store, ttl: ttl}, nil
}

func (c *redisSellerCache) Get(ctx context.Context, shopID int64) (*Seller, bool, error) {
	raw, err := c.store.Get(ctx, c.store.SellerKey(shopID))
	if redis.IsMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var seller Seller
	if err := json.Unmarshal([]byte(raw), &seller); err != nil {
		return nil, false, fmt.Errorf("decode cached seller: %w", err)
	}
	return &seller, true, nil
}

func (c *redisSellerCache) Set(ctx context.Context, seller Seller) error {
	payload, err := json.Marshal(seller)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.SellerKey(seller.ShopID), string(payload), c.ttl)
}

func (c *redisSellerCache) Invalidate(ctx context.Context, shopID int64) error {
	return c.store.Del(ctx, c.store.SellerKey(shopID))
}

type noopSellerCache struct{}

func (noopSellerCache) Get(context.Context, int64) (*Seller, bool, error) { return nil, false, nil }
func (noopSellerCache) Set(context.Context, Seller) error                 { return nil }
func (noopSellerCache) Invalidate(context.Context, int64) error           { return nil }
