package shopee

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

const (
	defaultHost           = "https://partner.shopeemobile.com"
	orderDetailPath       = "/api/v2/order/get_order_detail"
	orderDetailFields     = "item_list"
	responseBodyReadLimit = 1 << 20
	errorBodyReadLimit    = 1024
)

var (
	errPartnerRequired = errors.New("shopee partner id and key are required")
	errTokensRequired  = errors.New("shopee token source is required")
)

// TokenSource returns the current access token of a shop.
type TokenSource interface {
	AccessToken(ctx context.Context, shopID int64) (string, error)
}

// Client calls the signed Shopee Open Platform shop APIs the bridge needs.
type Client struct {
	httpClient *http.Client
	host       string
	partnerID  int64
	partnerKey string
	tokens     TokenSource
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithHost overrides the Open Platform host.
func WithHost(host string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			c.host = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a Shopee client for one partner app.
func NewClient(partnerID int64, partnerKey string, tokens TokenSource, opts ...Option) (*Client, error) {
	if partnerID == 0 || strings.TrimSpace(partnerKey) == "" {
		return nil, errPartnerRequired
	}
	if tokens == nil {
		return nil, errTokensRequired
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		host:       defaultHost,
		partnerID:  partnerID,
		partnerKey: partnerKey,
		tokens:     tokens,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Sign computes the shop-level API signature:
// hex(HMAC-SHA256(partnerKey, partnerID + path + timestamp + accessToken + shopID)).
func Sign(partnerID int64, path string, timestamp int64, accessToken string, shopID int64, partnerKey string) string {
	base := strconv.FormatInt(partnerID, 10) + path + strconv.FormatInt(timestamp, 10) + accessToken + strconv.FormatInt(shopID, 10)
	mac := hmac.New(sha256.New, []byte(partnerKey))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetOrderDetail fetches one order with its item list.
func (c *Client) GetOrderDetail(ctx context.Context, shopID int64, orderSN string) (*OrderDetail, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopee client not configured")
	}
	if shopID == 0 || strings.TrimSpace(orderSN) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and order sn are required")
	}

	token, err := c.tokens.AccessToken(ctx, shopID)
	if err != nil {
		return nil, err
	}

	ts := c.now().Unix()
	query := url.Values{}
	query.Set("partner_id", strconv.FormatInt(c.partnerID, 10))
	query.Set("timestamp", strconv.FormatInt(ts, 10))
	query.Set("access_token", token)
	query.Set("shop_id", strconv.FormatInt(shopID, 10))
	query.Set("sign", Sign(c.partnerID, orderDetailPath, ts, token, shopID, c.partnerKey))
	query.Set("order_sn_list", orderSN)
	query.Set("response_optional_fields", orderDetailFields)

	endpoint := fmt.Sprintf("%s%s?%s", c.host, orderDetailPath, query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build order detail request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute order detail request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "order detail request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read order detail response")
	}
	return DecodeOrderDetail(body)
}
