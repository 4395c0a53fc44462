package orders

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// checkpoint is the progress of one supplier group of an order. It lets a
// redelivery skip the writes an earlier delivery already made.
type checkpoint struct {
	OrderID       string             `json:"orderId"`
	SupplierID    string             `json:"supplierId"`
	Status        enums.FanOutStatus `json:"status"`
	StockApplied  []string           `json:"stockApplied"`
	LedgerApplied []string           `json:"ledgerApplied"`
	PaymentID     string             `json:"paymentId,omitempty"`
	Attempts      int                `json:"attempts"`
	LastError     string             `json:"lastError,omitempty"`
	LeaseUntil    time.Time          `json:"leaseUntil"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	record *itemstore.Record
}

func (c *checkpoint) stockDone(key string) bool  { return slices.Contains(c.StockApplied, key) }
func (c *checkpoint) ledgerDone(key string) bool { return slices.Contains(c.LedgerApplied, key) }

type acquireState int

const (
	acquiredFresh acquireState = iota
	acquiredTakeover
	alreadyCompleted
)

type checkpointStore struct {
	store itemstore.Store
	lease time.Duration
	now   func() time.Time
}

// kardexMarker pins the id of the kardex entry written for one order line.
type kardexMarker struct {
	MovementID string `json:"movementId"`
	SKU        string `json:"sku"`
}

// acquire claims the group for this delivery. A live claim held by another
// delivery is a CodeConflict so the queue redelivers later.
func (s *checkpointStore) acquire(ctx context.Context, orderID, supplierID string) (*checkpoint, acquireState, error) {
	now := s.now()
	key := itemstore.FanOutCheckpointKey(orderID, supplierID)
	fresh := &checkpoint{
		OrderID:    orderID,
		SupplierID: supplierID,
		Status:     enums.FanOutStatusInProgress,
		Attempts:   1,
		LeaseUntil: now.Add(s.lease),
		UpdatedAt:  now,
	}
	rec, err := s.store.Create(ctx, key, fresh)
	if err == nil {
		fresh.record = rec
		return fresh, acquiredFresh, nil
	}
	if !errors.Is(err, itemstore.ErrConditionFailed) {
		return nil, 0, err
	}

	rec, err = s.store.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	var existing checkpoint
	if err := rec.Decode(&existing); err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode fan-out checkpoint")
	}
	existing.record = rec

	switch {
	case existing.Status == enums.FanOutStatusCompleted:
		return &existing, alreadyCompleted, nil
	case existing.Status == enums.FanOutStatusInProgress && now.Before(existing.LeaseUntil):
		return nil, 0, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s supplier %s is being processed", orderID, supplierID)
	}

	existing.Status = enums.FanOutStatusInProgress
	existing.Attempts++
	existing.LeaseUntil = now.Add(s.lease)
	existing.UpdatedAt = now
	if err := s.save(ctx, &existing); err != nil {
		return nil, 0, err
	}
	return &existing, acquiredTakeover, nil
}

func (s *checkpointStore) markStock(ctx context.Context, cp *checkpoint, key string) error {
	cp.StockApplied = append(cp.StockApplied, key)
	return s.save(ctx, cp)
}

// movementID returns the kardex entry id reserved for an order line, claiming
// a fresh one when the line has none yet. Every delivery of the line appends
// under the same id.
func (s *checkpointStore) movementID(ctx context.Context, orderID, lineKey, sku string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate stock movement id")
	}
	key := itemstore.KardexMarkerKey(orderID, lineKey)
	_, err = s.store.Create(ctx, key, kardexMarker{MovementID: id.String(), SKU: sku})
	if err == nil {
		return id.String(), nil
	}
	if !errors.Is(err, itemstore.ErrConditionFailed) {
		return "", err
	}
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	var marker kardexMarker
	if err := rec.Decode(&marker); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode kardex marker")
	}
	return marker.MovementID, nil
}

func (s *checkpointStore) markLedger(ctx context.Context, cp *checkpoint, key string) error {
	cp.LedgerApplied = append(cp.LedgerApplied, key)
	return s.save(ctx, cp)
}

func (s *checkpointStore) complete(ctx context.Context, cp *checkpoint, paymentID string) error {
	cp.Status = enums.FanOutStatusCompleted
	cp.PaymentID = paymentID
	cp.LastError = ""
	return s.save(ctx, cp)
}

func (s *checkpointStore) fail(ctx context.Context, cp *checkpoint, cause error) error {
	cp.Status = enums.FanOutStatusFailed
	if cause != nil {
		cp.LastError = cause.Error()
	}
	return s.save(ctx, cp)
}

// save writes the checkpoint if nobody else took the group over meanwhile.
func (s *checkpointStore) save(ctx context.Context, cp *checkpoint) error {
	now := s.now()
	cp.UpdatedAt = now
	if cp.Status == enums.FanOutStatusInProgress {
		cp.LeaseUntil = now.Add(s.lease)
	}
	rec, err := s.store.Update(ctx, cp.record, cp)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "order %s supplier %s checkpoint was taken over", cp.OrderID, cp.SupplierID)
	}
	if err != nil {
		return err
	}
	cp.record = rec
	return nil
}
