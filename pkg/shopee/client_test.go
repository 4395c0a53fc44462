package shopee

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type staticTokens map[int64]string

func (s staticTokens) AccessToken(_ context.Context, shopID int64) (string, error) {
	if tok, ok := s[shopID]; ok {
		return tok, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, "no token")
}

func TestGetOrderDetailSignsRequest(t *testing.T) {
	var captured *http.Request
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(orderDetailBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(1001, "secret", staticTokens{77: "tok-77"},
		WithHost("http://shopee.test/"),
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	detail, err := client.GetOrderDetail(context.Background(), 77, "OS-1")
	require.NoError(t, err)
	require.Equal(t, "OS-1", detail.OrderSN)

	require.NotNil(t, captured)
	assert.Equal(t, "shopee.test", captured.URL.Host)
	assert.Equal(t, orderDetailPath, captured.URL.Path)
	q := captured.URL.Query()
	assert.Equal(t, "1001", q.Get("partner_id"))
	assert.Equal(t, "1700000000", q.Get("timestamp"))
	assert.Equal(t, "tok-77", q.Get("access_token"))
	assert.Equal(t, "77", q.Get("shop_id"))
	assert.Equal(t, "OS-1", q.Get("order_sn_list"))
	assert.Equal(t, "item_list", q.Get("response_optional_fields"))
	assert.Equal(t, Sign(1001, orderDetailPath, 1700000000, "tok-77", 77, "secret"), q.Get("sign"))
}

func TestGetOrderDetailMapsFailures(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("upstream down")),
			Header:     http.Header{},
		}, nil
	})
	client, err := NewClient(1001, "secret", staticTokens{77: "tok"}, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.GetOrderDetail(context.Background(), 77, "OS-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	_, err = client.GetOrderDetail(context.Background(), 78, "OS-1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency), "missing token")

	_, err = client.GetOrderDetail(context.Background(), 0, "OS-1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(0, "secret", staticTokens{})
	assert.Error(t, err)
	_, err = NewClient(1, "secret", nil)
	assert.Error(t, err)
}

type fakeTokenStore map[string]string

func (f fakeTokenStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f fakeTokenStore) ShopAccessTokenKey(shopID int64) string {
	return fmt.Sprintf("token:%d", shopID)
}

func TestRedisTokenSource(t *testing.T) {
	store := fakeTokenStore{}
	src, err := NewRedisTokenSource(store)
	require.NoError(t, err)

	_, err = src.AccessToken(context.Background(), 5)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	store[store.ShopAccessTokenKey(5)] = "tok-5"
	tok, err := src.AccessToken(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "tok-5", tok)
}
