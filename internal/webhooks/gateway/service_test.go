package gatewaywebhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore/itemstoretest"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/paymentlinks"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/shipments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *recordingMetrics) AddReconciled(outcome string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[outcome] += n
}

// brokenObligations fails reads of one payment id.
type brokenObligations struct {
	payments.Repository
	paymentID string
}

func (b brokenObligations) Get(ctx context.Context, sellerID, paymentID string) (*payments.Obligation, error) {
	if paymentID == b.paymentID {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "store unavailable")
	}
	return b.Repository.Get(ctx, sellerID, paymentID)
}

type fixture struct {
	links       paymentlinks.Repository
	linkSvc     paymentlinks.Service
	obligations payments.Repository
	shipments   shipments.Repository
	metrics     *recordingMetrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := itemstoretest.New(t)
	links := paymentlinks.NewRepository(store)
	obligations := payments.NewRepository(store)
	linkSvc, err := paymentlinks.NewService(paymentlinks.ServiceParams{
		Links:       links,
		Obligations: obligations,
		Checkout:    paymentlinks.CheckoutConfig{BaseURL: "https://checkout.example.com"},
	})
	require.NoError(t, err)
	return fixture{
		links:       links,
		linkSvc:     linkSvc,
		obligations: obligations,
		shipments:   shipments.NewRepository(store),
		metrics:     &recordingMetrics{counts: map[string]int{}},
	}
}

func (f fixture) service(t *testing.T, obligations payments.Repository, policy string) *Service {
	t.Helper()
	if obligations == nil {
		obligations = f.obligations
	}
	svc, err := NewService(ServiceParams{
		Links:            f.links,
		Obligations:      obligations,
		Shipments:        f.shipments,
		Metrics:          f.metrics,
		PaidAmountPolicy: policy,
	})
	require.NoError(t, err)
	return svc
}

func (f fixture) seedLink(t *testing.T, totals map[string]string, ids ...string) *paymentlinks.Link {
	t.Helper()
	sum := decimal.Zero
	for _, id := range ids {
		total := decimal.RequireFromString(totals[id])
		created, err := f.obligations.Create(context.Background(), &payments.Obligation{
			PaymentID:   id,
			SellerID:    "seller1",
			SupplierID:  "S-" + id,
			OrderID:     "O-" + id,
			TotalAmount: total,
			Status:      enums.PaymentStatusPending,
			CreatedAt:   time.Now().UTC(),
		})
		require.NoError(t, err)
		require.True(t, created)
		sum = sum.Add(total)
	}
	link, err := f.linkSvc.CreateLink(context.Background(), "seller1", ids, sum)
	require.NoError(t, err)
	return link
}

func confirmation(link *paymentlinks.Link, paid string) PaymentConfirmation {
	return PaymentConfirmation{
		Token:          link.Token,
		TransactionNSU: "tx-1",
		CaptureMethod:  "pix",
		ReceiptURL:     "https://receipt.example.com/tx-1",
		PaidAmount:     decimal.RequireFromString(paid),
		Installments:   1,
	}
}

func TestReconcileWebhookPaysEveryObligation(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")
	svc := f.service(t, nil, "")

	res, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "150.00"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.AlreadyProcessed)
	assert.Zero(t, res.Failed)

	for _, id := range []string{"P1", "P2"} {
		o, err := f.obligations.Get(context.Background(), "seller1", id)
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentStatusPaid, o.Status)
		require.NotNil(t, o.CompletedAt)

		list, err := f.shipments.ListBySupplier(context.Background(), "S-"+id)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, shipments.ShipmentID(id), list[0].ShipmentID)
		assert.Equal(t, "tx-1", list[0].TransactionNSU)
		assert.Equal(t, enums.ShipmentStatusAwaitingShipment, list[0].Status)
		assert.Nil(t, list[0].ShippedAt)
		assert.Equal(t, "150.00", list[0].PaidAmount.StringFixed(2))
	}

	stored, err := f.links.GetByToken(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentLinkStatusCompleted, stored.Status)
	assert.Equal(t, 2, f.metrics.counts[outcomeSucceeded])
}

func TestReconcileWebhookDuplicateDeliveryIsHarmless(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")
	svc := f.service(t, nil, "")

	_, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "150.00"))
	require.NoError(t, err)
	res, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "150.00"))
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Equal(t, 2, res.AlreadyProcessed)

	for _, id := range []string{"P1", "P2"} {
		list, err := f.shipments.ListBySupplier(context.Background(), "S-"+id)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	assert.Equal(t, 2, f.metrics.counts[outcomeAlreadyProcessed])
}

func TestReconcileWebhookUnknownToken(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, nil, "")

	_, err := svc.ReconcileWebhook(context.Background(), PaymentConfirmation{Token: "nope"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.ReconcileWebhook(context.Background(), PaymentConfirmation{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestReconcileWebhookFailureDoesNotStopSiblings(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00", "P3": "25.00"}, "P1", "P2", "P3")
	svc := f.service(t, brokenObligations{Repository: f.obligations, paymentID: "P2"}, "")

	res, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "175.00"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "P2", res.Failures[0].PaymentID)

	p2, err := f.obligations.Get(context.Background(), "seller1", "P2")
	require.NoError(t, err)
	assert.True(t, p2.IsPending())

	stored, err := f.links.GetByToken(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentLinkStatusCompleted, stored.Status)

	// the retry settles the one left behind
	res, err = f.service(t, nil, "").ReconcileWebhook(context.Background(), confirmation(link, "175.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.AlreadyProcessed)
}

func TestReconcileWebhookProratesPaidAmount(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")
	svc := f.service(t, nil, PolicyProrate)

	_, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "100.00"))
	require.NoError(t, err)

	s1, err := f.shipments.ListBySupplier(context.Background(), "S-P1")
	require.NoError(t, err)
	s2, err := f.shipments.ListBySupplier(context.Background(), "S-P2")
	require.NoError(t, err)
	assert.Equal(t, "66.66", s1[0].PaidAmount.StringFixed(2))
	assert.Equal(t, "33.34", s2[0].PaidAmount.StringFixed(2))
}

func TestReconcileWebhookRecordsGatewayPaidAmount(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")
	svc := f.service(t, nil, "")

	// installment interest makes the gateway charge more than the link total
	_, err := svc.ReconcileWebhook(context.Background(), confirmation(link, "155.90"))
	require.NoError(t, err)

	for _, id := range []string{"P1", "P2"} {
		list, err := f.shipments.ListBySupplier(context.Background(), "S-"+id)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "155.90", list[0].PaidAmount.StringFixed(2))
	}
}

func TestReconcileWebhookProrateRetryKeepsLinkShares(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")

	res, err := f.service(t, brokenObligations{Repository: f.obligations, paymentID: "P2"}, PolicyProrate).
		ReconcileWebhook(context.Background(), confirmation(link, "150.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	res, err = f.service(t, nil, PolicyProrate).ReconcileWebhook(context.Background(), confirmation(link, "150.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.AlreadyProcessed)

	s1, err := f.shipments.ListBySupplier(context.Background(), "S-P1")
	require.NoError(t, err)
	s2, err := f.shipments.ListBySupplier(context.Background(), "S-P2")
	require.NoError(t, err)
	require.Len(t, s1, 1)
	require.Len(t, s2, 1)
	assert.Equal(t, "100.00", s1[0].PaidAmount.StringFixed(2))
	assert.Equal(t, "50.00", s2[0].PaidAmount.StringFixed(2))
	assert.Equal(t, "150.00", s1[0].PaidAmount.Add(s2[0].PaidAmount).StringFixed(2))
}

func TestReconcileWebhookProrateRemainderGoesToLastPaymentID(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, map[string]string{"P1": "100.00", "P2": "50.00"}, "P1", "P2")

	// P2 is settled first, alone; its share must not absorb P1's part
	res, err := f.service(t, brokenObligations{Repository: f.obligations, paymentID: "P1"}, PolicyProrate).
		ReconcileWebhook(context.Background(), confirmation(link, "100.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	_, err = f.service(t, nil, PolicyProrate).ReconcileWebhook(context.Background(), confirmation(link, "100.00"))
	require.NoError(t, err)

	s1, err := f.shipments.ListBySupplier(context.Background(), "S-P1")
	require.NoError(t, err)
	s2, err := f.shipments.ListBySupplier(context.Background(), "S-P2")
	require.NoError(t, err)
	assert.Equal(t, "66.66", s1[0].PaidAmount.StringFixed(2))
	assert.Equal(t, "33.34", s2[0].PaidAmount.StringFixed(2))
}

func TestNewServiceRejectsUnknownPolicy(t *testing.T) {
	f := newFixture(t)
	_, err := NewService(ServiceParams{
		Links:            f.links,
		Obligations:      f.obligations,
		Shipments:        f.shipments,
		PaidAmountPolicy: "split",
	})
	require.Error(t, err)
}
