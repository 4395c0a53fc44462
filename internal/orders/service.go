package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/ledger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/suppliers"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/shopee"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultLease       = 2 * time.Minute
)

// Service turns marketplace order events into stock movements and supplier
// payment obligations.
type Service interface {
	ProcessOrder(ctx context.Context, event OrderEvent) (*ProcessResult, error)
}

// ServiceParams wires the fan-out collaborators.
type ServiceParams struct {
	Store       itemstore.Store
	Fetcher     OrderDetailFetcher
	Resolver    suppliers.Resolver
	Ledger      ledger.Service
	Obligations payments.Repository
	Metrics     Metrics
	Logger      *logger.Logger
	// Concurrency bounds how many supplier groups run at once.
	Concurrency int
	// CheckpointLease is how long a group claim stays exclusive.
	CheckpointLease time.Duration
}

type service struct {
	fetcher     OrderDetailFetcher
	resolver    suppliers.Resolver
	ledger      ledger.Service
	obligations payments.Repository
	checkpoints *checkpointStore
	metrics     Metrics
	logg        *logger.Logger
	concurrency int
	now         func() time.Time
}

// NewService validates the collaborators and builds the fan-out engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("item store required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("order detail fetcher required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("supplier resolver required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Obligations == nil {
		return nil, fmt.Errorf("payment obligation repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	lease := params.CheckpointLease
	if lease <= 0 {
		lease = defaultLease
	}
	now := func() time.Time { return time.Now().UTC() }
	return &service{
		fetcher:     params.Fetcher,
		resolver:    params.Resolver,
		ledger:      params.Ledger,
		obligations: params.Obligations,
		checkpoints: &checkpointStore{store: params.Store, lease: lease, now: now},
		metrics:     metrics,
		logg:        params.Logger,
		concurrency: concurrency,
		now:         now,
	}, nil
}

func (s *service) ProcessOrder(ctx context.Context, event OrderEvent) (*ProcessResult, error) {
	if err := event.validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, event.OrderID)
	ctx = s.logg.WithShopID(ctx, event.ShopID)

	result := &ProcessResult{OrderID: event.OrderID, ShopID: event.ShopID}
	if !event.ReadyToShip() {
		s.logg.Info(s.logg.WithField(ctx, "status", event.Status), "order status does not trigger fan-out")
		return result, nil
	}

	started := time.Now()
	err := s.fanOut(ctx, event, result)
	outcome := "processed"
	if err != nil {
		outcome = "failed"
	}
	s.metrics.ObserveOrder(time.Since(started), outcome)
	if err != nil {
		return result, err
	}
	result.Processed = true
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"groups":        len(result.Groups),
		"skipped_lines": len(result.SkippedLines),
	}), "order fan-out completed")
	return result, nil
}

func (s *service) fanOut(ctx context.Context, event OrderEvent, result *ProcessResult) error {
	detail, err := s.fetcher.GetOrderDetail(ctx, event.ShopID, event.OrderID)
	if err != nil {
		return err
	}

	seller, err := s.resolver.ResolveSeller(ctx, event.ShopID)
	if err != nil {
		return err
	}
	if seller == nil {
		for _, lr := range detail.Lines {
			s.skip(ctx, result, SkippedLine{Index: lr.Index, SKU: lr.Line.SKU, Reason: SkipSellerNotFound})
		}
		return nil
	}
	result.SellerID = seller.SellerID
	ctx = s.logg.WithSellerID(ctx, seller.SellerID)

	lines, err := s.resolveLines(ctx, detail.Lines, result)
	if err != nil {
		return err
	}

	groups := groupBySupplier(lines)
	result.Groups = make([]GroupResult, len(groups))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, group := range groups {
		g.Go(func() error {
			result.Groups[i] = s.processGroup(ctx, event, seller, group)
			return nil
		})
	}
	_ = g.Wait()

	var combined error
	for _, gr := range result.Groups {
		combined = multierr.Append(combined, gr.err)
	}
	return combined
}

// resolveLines binds each decodable line to a product and a single supplier.
// Lines that cannot be bound are skipped; store failures abort the order.
func (s *service) resolveLines(ctx context.Context, results []shopee.LineResult, out *ProcessResult) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, 0, len(results))
	for _, lr := range results {
		if lr.Err != nil {
			s.skip(ctx, out, SkippedLine{Index: lr.Index, SKU: lr.Line.SKU, Reason: SkipDecodeFailed, Detail: lr.Err.Error()})
			continue
		}
		sku := lr.Line.SKU

		productID, err := s.resolver.ResolveProductID(ctx, sku)
		if err != nil {
			return nil, err
		}
		if productID == "" {
			s.skip(ctx, out, SkippedLine{Index: lr.Index, SKU: sku, Reason: SkipProductNotFound})
			continue
		}

		binding, err := s.resolver.ResolveStockBinding(ctx, productID, sku)
		if errors.Is(err, suppliers.ErrAmbiguousBinding) {
			s.skip(ctx, out, SkippedLine{Index: lr.Index, SKU: sku, Reason: SkipAmbiguousBinding, Detail: err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		if binding == nil {
			s.skip(ctx, out, SkippedLine{Index: lr.Index, SKU: sku, Reason: SkipNoStockBinding})
			continue
		}

		resolved = append(resolved, resolvedLine{
			key:       lineKey(lr.Index, sku),
			index:     lr.Index,
			line:      lr.Line,
			productID: productID,
			binding:   binding,
		})
	}
	return resolved, nil
}

func (s *service) skip(ctx context.Context, out *ProcessResult, line SkippedLine) {
	out.SkippedLines = append(out.SkippedLines, line)
	s.metrics.IncSkippedLine(string(line.Reason))
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"line_index": line.Index,
		"sku":        line.SKU,
		"reason":     string(line.Reason),
		"detail":     line.Detail,
	}), "order line skipped")
}

// processGroup runs stock, ledger and obligation for one supplier, resuming
// from the checkpoint a previous delivery left behind.
func (s *service) processGroup(ctx context.Context, event OrderEvent, seller *suppliers.Seller, group supplierGroup) GroupResult {
	ctx = s.logg.WithSupplierID(ctx, group.supplierID)
	paymentID := payments.PaymentID(seller.SellerID, group.supplierID, event.OrderID)
	res := GroupResult{SupplierID: group.supplierID, PaymentID: paymentID, Lines: len(group.lines)}

	cp, state, err := s.checkpoints.acquire(ctx, event.OrderID, group.supplierID)
	if err != nil {
		res.err = fmt.Errorf("supplier %s: %w", group.supplierID, err)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "supplier group not acquired")
		return res
	}
	if state == alreadyCompleted {
		res.AlreadyCompleted = true
		for _, step := range []Step{StepStock, StepLedger, StepObligation} {
			res.Steps = append(res.Steps, s.record(StepResult{Step: step, Outcome: OutcomeSkipped}))
		}
		s.logg.Info(ctx, "supplier group already completed")
		return res
	}
	if state == acquiredTakeover {
		s.logg.Info(s.logg.WithField(ctx, "attempt", cp.Attempts), "resuming supplier group")
	}

	steps := []func() StepResult{
		func() StepResult { return s.stockStep(ctx, event, cp, group) },
		func() StepResult { return s.ledgerStep(ctx, event, cp, group) },
		func() StepResult { return s.obligationStep(ctx, event, seller, group) },
	}
	for _, run := range steps {
		step := s.record(run())
		res.Steps = append(res.Steps, step)
		if step.err != nil {
			res.err = fmt.Errorf("supplier %s %s step: %w", group.supplierID, step.Step, step.err)
			s.markFailed(ctx, cp, step.err)
			return res
		}
	}

	if err := s.checkpoints.complete(ctx, cp, paymentID); err != nil {
		res.err = fmt.Errorf("supplier %s checkpoint: %w", group.supplierID, err)
	}
	return res
}

// stockStep and ledgerStep each write once per line: the checkpoint skips
// lines already recorded, and the binding's apply key and the kardex marker
// cover a crash between a write and its checkpoint mark.
func (s *service) stockStep(ctx context.Context, event OrderEvent, cp *checkpoint, group supplierGroup) StepResult {
	step := StepResult{Step: StepStock}
	for _, line := range group.lines {
		if cp.stockDone(line.key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return step.failed(err)
		}
		_, applied, err := s.resolver.DecrementStock(ctx, line.binding, line.line.Quantity, event.OrderID+"#"+line.key)
		if err != nil {
			return step.failed(err)
		}
		if err := s.checkpoints.markStock(ctx, cp, line.key); err != nil {
			return step.failed(err)
		}
		if applied {
			step.Applied++
		}
	}
	return step.done()
}

func (s *service) ledgerStep(ctx context.Context, event OrderEvent, cp *checkpoint, group supplierGroup) StepResult {
	step := StepResult{Step: StepLedger}
	for _, line := range group.lines {
		if cp.ledgerDone(line.key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return step.failed(err)
		}
		movementID, err := s.checkpoints.movementID(ctx, event.OrderID, line.key, line.line.SKU)
		if err != nil {
			return step.failed(err)
		}
		_, err = s.ledger.Append(ctx, ledger.AppendInput{
			ID:         movementID,
			SKU:        line.line.SKU,
			ProductID:  line.productID,
			Quantity:   line.line.Quantity,
			Operation:  enums.StockMovementOperationRemove,
			SupplierID: group.supplierID,
			OrderID:    event.OrderID,
			ShopID:     event.ShopID,
		})
		if err != nil {
			return step.failed(err)
		}
		if err := s.checkpoints.markLedger(ctx, cp, line.key); err != nil {
			return step.failed(err)
		}
		step.Applied++
	}
	return step.done()
}

func (s *service) obligationStep(ctx context.Context, event OrderEvent, seller *suppliers.Seller, group supplierGroup) StepResult {
	step := StepResult{Step: StepObligation}
	if err := ctx.Err(); err != nil {
		return step.failed(err)
	}
	obligation := payments.NewObligation(payments.NewObligationInput{
		SellerID:     seller.SellerID,
		SupplierID:   group.supplierID,
		SupplierName: group.supplierName,
		OrderID:      event.OrderID,
		ShopID:       event.ShopID,
		Lines:        obligationLines(group),
	}, s.now())
	created, err := s.obligations.Create(ctx, obligation)
	if err != nil {
		return step.failed(err)
	}
	if created {
		step.Applied = 1
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_id": obligation.PaymentID,
			"total":      obligation.TotalAmount.StringFixed(2),
		}), "payment obligation created")
	}
	return step.done()
}

func (s *service) record(step StepResult) StepResult {
	s.metrics.IncStep(string(step.Step), string(step.Outcome))
	return step
}

// markFailed releases the claim so the next delivery can take over at once.
// It runs detached from ctx so a canceled delivery still records the failure.
func (s *service) markFailed(ctx context.Context, cp *checkpoint, cause error) {
	if err := s.checkpoints.fail(context.WithoutCancel(ctx), cp, cause); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "could not mark supplier group failed")
	}
}

func (r StepResult) failed(err error) StepResult {
	r.Outcome = OutcomeFailed
	r.err = err
	r.Error = err.Error()
	return r
}

func (r StepResult) done() StepResult {
	if r.Applied > 0 {
		r.Outcome = OutcomeApplied
	} else {
		r.Outcome = OutcomeSkipped
	}
	return r
}
