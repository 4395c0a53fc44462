package gatewaywebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/paymentlinks"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/shipments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

const (
	outcomeSucceeded        = "succeeded"
	outcomeAlreadyProcessed = "already_processed"
	outcomeFailed           = "failed"
)

// Metrics receives reconciliation counts. *metrics.PipelineMetrics satisfies it.
type Metrics interface {
	AddReconciled(outcome string, n int)
}

type nopMetrics struct{}

func (nopMetrics) AddReconciled(string, int) {}

// ServiceParams wires the reconciliation engine.
type ServiceParams struct {
	Links       paymentlinks.Repository
	Obligations payments.Repository
	Shipments   shipments.Repository
	Metrics     Metrics
	Logger      *logger.Logger
	// PaidAmountPolicy is PolicyReplicate (default) or PolicyProrate.
	PaidAmountPolicy string
}

// Service settles the obligations of a paid payment link.
type Service struct {
	links       paymentlinks.Repository
	obligations payments.Repository
	shipments   shipments.Repository
	metrics     Metrics
	logg        *logger.Logger
	policy      string
	now         func() time.Time
}

// NewService validates the repositories and the paid amount policy.
func NewService(params ServiceParams) (*Service, error) {
	if params.Links == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment link repo required")
	}
	if params.Obligations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment obligation repo required")
	}
	if params.Shipments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipment repo required")
	}
	policy := strings.ToLower(strings.TrimSpace(params.PaidAmountPolicy))
	switch policy {
	case "":
		policy = PolicyReplicate
	case PolicyReplicate, PolicyProrate:
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "unknown paid amount policy %q", params.PaidAmountPolicy)
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		links:       params.Links,
		obligations: params.Obligations,
		shipments:   params.Shipments,
		metrics:     metrics,
		logg:        logg,
		policy:      policy,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ReconcileWebhook settles every obligation of the paid link. Each obligation
// is handled on its own: one failure never stops its siblings, and an
// obligation that is no longer pending is counted and left alone.
func (s *Service) ReconcileWebhook(ctx context.Context, confirmation PaymentConfirmation) (*ReconcileResult, error) {
	if strings.TrimSpace(confirmation.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_nsu is required")
	}
	link, err := s.links.GetByToken(ctx, confirmation.Token)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"link_id":         link.LinkID,
		"seller_id":       link.SellerID,
		"transaction_nsu": confirmation.TransactionNSU,
	})

	result := &ReconcileResult{LinkID: link.LinkID, SellerID: link.SellerID}
	pending := make([]*payments.Obligation, 0, len(link.PaymentIDs))
	totals := make(map[string]decimal.Decimal, len(link.PaymentIDs))
	for id, amount := range link.Amounts {
		totals[id] = amount
	}
	for _, id := range link.PaymentIDs {
		obligation, err := s.obligations.Get(ctx, link.SellerID, id)
		if err != nil {
			s.fail(ctx, result, id, err)
			continue
		}
		if _, ok := totals[id]; !ok {
			totals[id] = obligation.TotalAmount
		}
		if !obligation.IsPending() {
			result.AlreadyProcessed++
			continue
		}
		pending = append(pending, obligation)
	}

	amounts := s.paidAmounts(link, totals, confirmation.PaidAmount)
	paidAt := s.now()
	for _, obligation := range pending {
		if err := s.settle(ctx, obligation, confirmation, amounts[obligation.PaymentID], paidAt, result); err != nil {
			s.fail(ctx, result, obligation.PaymentID, err)
		}
	}

	if err := s.links.MarkCompleted(ctx, link, paidAt); err != nil {
		s.logg.Error(ctx, "failed to complete payment link", err)
	}

	s.metrics.AddReconciled(outcomeSucceeded, result.Succeeded)
	s.metrics.AddReconciled(outcomeAlreadyProcessed, result.AlreadyProcessed)
	s.metrics.AddReconciled(outcomeFailed, result.Failed)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"succeeded":         result.Succeeded,
		"already_processed": result.AlreadyProcessed,
		"failed":            result.Failed,
	}), "payment link reconciled")
	return result, nil
}

// settle records the shipment first, then flips the obligation to paid, so a
// paid obligation always has its shipment.
func (s *Service) settle(ctx context.Context, obligation *payments.Obligation, confirmation PaymentConfirmation, amount decimal.Decimal, paidAt time.Time, result *ReconcileResult) error {
	shipment := &shipments.Shipment{
		ShipmentID:     shipments.ShipmentID(obligation.PaymentID),
		SupplierID:     obligation.SupplierID,
		SellerID:       obligation.SellerID,
		PaymentID:      obligation.PaymentID,
		OrderID:        obligation.OrderID,
		TransactionNSU: confirmation.TransactionNSU,
		CaptureMethod:  confirmation.CaptureMethod,
		ReceiptURL:     confirmation.ReceiptURL,
		PaidAmount:     amount,
		Installments:   confirmation.Installments,
		Status:         enums.ShipmentStatusAwaitingShipment,
		CreatedAt:      paidAt,
	}
	if _, err := s.shipments.Create(ctx, shipment); err != nil {
		return fmt.Errorf("create shipment: %w", err)
	}

	transitioned, err := s.obligations.MarkPaid(ctx, obligation, paidAt)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if !transitioned {
		result.AlreadyProcessed++
		return nil
	}
	result.Succeeded++
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_id":  obligation.PaymentID,
		"supplier_id": obligation.SupplierID,
		"shipment_id": shipment.ShipmentID,
	}), "payment obligation paid")
	return nil
}

func (s *Service) fail(ctx context.Context, result *ReconcileResult, paymentID string, err error) {
	result.Failed++
	result.Failures = append(result.Failures, ObligationFailure{PaymentID: paymentID, Error: err.Error()})
	s.logg.Error(s.logg.WithField(ctx, "payment_id", paymentID), "failed to reconcile payment obligation", err)
}

// paidAmounts assigns the amount each shipment of the link records. Replicate
// gives every shipment the paid amount. Prorate splits it by obligation total
// over the whole link, truncated to cents, with the leftover cents on the last
// payment id, so retries that settle a subset still add up to the paid amount.
func (s *Service) paidAmounts(link *paymentlinks.Link, totals map[string]decimal.Decimal, paid decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(link.PaymentIDs))
	if s.policy != PolicyProrate {
		for _, id := range link.PaymentIDs {
			out[id] = paid
		}
		return out
	}

	base := link.TotalAmount
	if !base.IsPositive() {
		return out
	}
	last := len(link.PaymentIDs) - 1
	assigned := decimal.Zero
	known := true
	for i, id := range link.PaymentIDs {
		total, ok := totals[id]
		if i == last && known {
			out[id] = paid.Sub(assigned)
			break
		}
		if !ok {
			// unread and not recorded on the link: nothing is settled for it now
			known = false
			continue
		}
		share := paid.Mul(total).Div(base).Truncate(2)
		out[id] = share
		assigned = assigned.Add(share)
	}
	return out
}
