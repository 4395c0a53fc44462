package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore/itemstoretest"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/orders"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/config"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubDispatcher struct {
	events []orders.OrderEvent
}

func (s *stubDispatcher) Dispatch(_ context.Context, event orders.OrderEvent) error {
	s.events = append(s.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", CORSOrigins: []string{"https://seller.example.com"}},
		Shopee: config.ShopeeConfig{
			PartnerKey: "partner-secret",
			PushURL:    "https://bridge.example.com/api/v1/webhooks/shopee",
		},
		Gateway: config.GatewayConfig{WebhookSecret: "gw-secret"},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, deps Deps) http.Handler {
	t.Helper()
	if deps.Obligations == nil {
		deps.Obligations = payments.NewRepository(itemstoretest.New(t))
	}
	return NewRouter(cfg, nil, deps)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{DB: stubPinger{}, Redis: stubPinger{}})

	live := httptest.NewRecorder()
	router.ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if live.Code != http.StatusOK {
		t.Fatalf("expected 200 from live got %d", live.Code)
	}
	if live.Header().Get("X-DropShop-Env") != "test" {
		t.Fatalf("expected env header")
	}
	if live.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	ready := httptest.NewRecorder()
	router.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if ready.Code != http.StatusOK {
		t.Fatalf("expected 200 from ready got %d", ready.Code)
	}
	if !strings.Contains(ready.Body.String(), `"db":"up"`) {
		t.Fatalf("expected db check in body: %s", ready.Body.String())
	}
	if strings.Contains(ready.Body.String(), "pubsub") {
		t.Fatalf("nil pinger should be skipped: %s", ready.Body.String())
	}
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{
		DB:    stubPinger{},
		Redis: stubPinger{err: errors.New("connection refused")},
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"down"`) {
		t.Fatalf("expected redis marked down: %s", resp.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics got %d", resp.Code)
	}
}

func TestShopeeWebhookRouteVerifiesAndDispatches(t *testing.T) {
	cfg := testConfig()
	dispatcher := &stubDispatcher{}
	router := newTestRouter(t, cfg, Deps{Dispatcher: dispatcher})

	body := `{"code":3,"shop_id":9,"data":{"ordersn":"ORD","status":"READY_TO_SHIP"}}`
	unsigned := httptest.NewRecorder()
	router.ServeHTTP(unsigned, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopee", strings.NewReader(body)))
	if unsigned.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned push got %d", unsigned.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopee", strings.NewReader(body))
	req.Header.Set("Authorization", shopee.PushSignature(cfg.Shopee.PushURL, []byte(body), cfg.Shopee.PartnerKey))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed push got %d: %s", resp.Code, resp.Body.String())
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].OrderID != "ORD" {
		t.Fatalf("expected one dispatched event got %+v", dispatcher.events)
	}
}

func TestGatewayWebhookRouteMounted(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(`{}`)))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without webhook service got %d", resp.Code)
	}
}

func TestSellerPaymentsRoute(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sellers/seller-1/payments?status=pending", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if strings.TrimSpace(resp.Body.String()) != `{"data":[]}` {
		t.Fatalf("expected empty list got %s", resp.Body.String())
	}

	bad := httptest.NewRecorder()
	router.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/v1/sellers/seller-1/payments?status=weird", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", bad.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sellers/seller-1/payment-links", nil)
	req.Header.Set("Origin", "https://seller.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://seller.example.com" {
		t.Fatalf("expected allowed origin header got %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(t, testConfig(), Deps{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
