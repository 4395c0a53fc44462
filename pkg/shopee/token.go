package shopee

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/redis"
)

type tokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	ShopAccessTokenKey(shopID int64) string
}

// RedisTokenSource reads shop access tokens kept fresh by the auth service.
type RedisTokenSource struct {
	store tokenStore
}

// NewRedisTokenSource returns a TokenSource over the shared Redis keyspace.
func NewRedisTokenSource(store tokenStore) (*RedisTokenSource, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	return &RedisTokenSource{store: store}, nil
}

func (s *RedisTokenSource) AccessToken(ctx context.Context, shopID int64) (string, error) {
	token, err := s.store.Get(ctx, s.store.ShopAccessTokenKey(shopID))
	if redis.IsMiss(err) || (err == nil && token == "") {
		return "", pkgerrors.Newf(pkgerrors.CodeDependency, "no shopee access token for shop %d", shopID)
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read shopee access token for shop %d", shopID))
	}
	return token, nil
}
