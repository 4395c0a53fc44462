package paymentlinks

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore/itemstoretest"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

type fixture struct {
	svc         Service
	links       Repository
	obligations payments.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := itemstoretest.New(t)
	links := NewRepository(store)
	obligations := payments.NewRepository(store)
	svc, err := NewService(ServiceParams{
		Links:       links,
		Obligations: obligations,
		Checkout: CheckoutConfig{
			BaseURL:     "https://checkout.example.com",
			Handle:      "dropshop",
			RedirectURL: "https://app.example.com/paid",
		},
	})
	require.NoError(t, err)
	return fixture{svc: svc, links: links, obligations: obligations}
}

func (f fixture) obligation(t *testing.T, sellerID, paymentID, total string) *payments.Obligation {
	t.Helper()
	o := &payments.Obligation{
		PaymentID:   paymentID,
		SellerID:    sellerID,
		SupplierID:  "S-" + paymentID,
		OrderID:     "O-" + paymentID,
		TotalAmount: decimal.RequireFromString(total),
		Status:      enums.PaymentStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := f.obligations.Create(context.Background(), o)
	require.NoError(t, err)
	require.True(t, created)
	return o
}

func TestCreateLinkForPendingObligations(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	f.obligation(t, "seller1", "P2", "50.00")

	link, err := f.svc.CreateLink(context.Background(), "seller1", []string{"P1", "P2"}, decimal.RequireFromString("150.00"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentLinkStatusPending, link.Status)
	assert.Equal(t, []string{"P1", "P2"}, link.PaymentIDs)
	assert.Equal(t, Token([]string{"P1", "P2"}), link.Token)
	assert.Len(t, link.Token, 32)

	u, err := url.Parse(link.CheckoutURL)
	require.NoError(t, err)
	assert.Equal(t, "/dropshop", u.Path)
	assert.Equal(t, link.Token, u.Query().Get("order_nsu"))
	assert.Equal(t, link.LinkID, u.Query().Get("link_id"))
	assert.Equal(t, "15000", u.Query().Get("amount"))
	assert.Equal(t, "https://app.example.com/paid", u.Query().Get("redirect_url"))

	byToken, err := f.links.GetByToken(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, link.LinkID, byToken.LinkID)
	require.Len(t, byToken.Amounts, 2)
	assert.Equal(t, "100.00", byToken.Amounts["P1"].StringFixed(2))
	assert.Equal(t, "50.00", byToken.Amounts["P2"].StringFixed(2))

	pending, err := f.svc.ListPendingObligations(context.Background(), "seller1")
	require.NoError(t, err)
	assert.Len(t, pending, 2, "obligations are not touched by link creation")
}

func TestCreateLinkRejectsPaidObligationAndWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	p2 := f.obligation(t, "seller1", "P2", "50.00")
	paid, err := f.obligations.MarkPaid(context.Background(), p2, time.Now())
	require.NoError(t, err)
	require.True(t, paid)

	_, err = f.svc.CreateLink(context.Background(), "seller1", []string{"P1", "P2"}, decimal.RequireFromString("150.00"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "got %v", err)

	_, err = f.links.GetByToken(context.Background(), Token([]string{"P1", "P2"}))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCreateLinkPreconditions(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	f.obligation(t, "seller2", "P9", "10.00")
	ctx := context.Background()
	hundred := decimal.RequireFromString("100.00")

	cases := []struct {
		name   string
		seller string
		ids    []string
		total  decimal.Decimal
		code   pkgerrors.Code
	}{
		{name: "missing seller", seller: "", ids: []string{"P1"}, total: hundred, code: pkgerrors.CodeValidation},
		{name: "no ids", seller: "seller1", ids: nil, total: hundred, code: pkgerrors.CodeValidation},
		{name: "repeated id", seller: "seller1", ids: []string{"P1", "P1"}, total: hundred, code: pkgerrors.CodeValidation},
		{name: "zero total", seller: "seller1", ids: []string{"P1"}, total: decimal.Zero, code: pkgerrors.CodeValidation},
		{name: "unknown payment", seller: "seller1", ids: []string{"P1", "PX"}, total: hundred, code: pkgerrors.CodeNotFound},
		{name: "other seller payment", seller: "seller1", ids: []string{"P9"}, total: decimal.RequireFromString("10.00"), code: pkgerrors.CodeNotFound},
		{name: "total mismatch", seller: "seller1", ids: []string{"P1"}, total: decimal.RequireFromString("99.99"), code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateLink(ctx, tc.seller, tc.ids, tc.total)
			require.Error(t, err)
			assert.Equal(t, tc.code, pkgerrors.CodeOf(err))
		})
	}
}

func TestCreateLinkRetryReturnsSameLink(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	f.obligation(t, "seller1", "P2", "50.00")
	ctx := context.Background()
	total := decimal.RequireFromString("150.00")

	first, err := f.svc.CreateLink(ctx, "seller1", []string{"P1", "P2"}, total)
	require.NoError(t, err)
	second, err := f.svc.CreateLink(ctx, "seller1", []string{"P1", "P2"}, total)
	require.NoError(t, err)
	assert.Equal(t, first.LinkID, second.LinkID)
	assert.Equal(t, first.CheckoutURL, second.CheckoutURL)
}

func TestCreateLinkTokenOwnedByAnotherSeller(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	f.obligation(t, "seller2", "P1", "100.00")
	ctx := context.Background()
	total := decimal.RequireFromString("100.00")

	_, err := f.svc.CreateLink(ctx, "seller1", []string{"P1"}, total)
	require.NoError(t, err)
	_, err = f.svc.CreateLink(ctx, "seller2", []string{"P1"}, total)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestCreateLinkRecoversIndexedTokenWithoutLink(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	ctx := context.Background()
	token := Token([]string{"P1"})
	orphan := uuid.NewString()

	claimed, _, err := f.links.ClaimToken(ctx, token, "seller1", orphan)
	require.NoError(t, err)
	require.True(t, claimed)

	link, err := f.svc.CreateLink(ctx, "seller1", []string{"P1"}, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.Equal(t, orphan, link.LinkID)
}

func TestGetLinkAndMarkCompleted(t *testing.T) {
	f := newFixture(t)
	f.obligation(t, "seller1", "P1", "100.00")
	ctx := context.Background()

	link, err := f.svc.CreateLink(ctx, "seller1", []string{"P1"}, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	got, err := f.svc.GetLink(ctx, "seller1", link.LinkID)
	require.NoError(t, err)
	require.NoError(t, f.links.MarkCompleted(ctx, got, time.Now()))
	assert.Equal(t, enums.PaymentLinkStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	stale, err := f.links.GetByToken(ctx, link.Token)
	require.NoError(t, err)
	require.NoError(t, f.links.MarkCompleted(ctx, stale, time.Now()))
	assert.Equal(t, enums.PaymentLinkStatusCompleted, stale.Status)

	_, err = f.svc.GetLink(ctx, "seller1", "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestTokenAndCents(t *testing.T) {
	assert.Equal(t, Token([]string{"P1", "P2"}), Token([]string{"P1", "P2"}))
	assert.NotEqual(t, Token([]string{"P1", "P2"}), Token([]string{"P2", "P1"}))
	assert.Equal(t, int64(15000), AmountInCents(decimal.RequireFromString("150")))
	assert.Equal(t, int64(1235), AmountInCents(decimal.RequireFromString("12.345")))
}
