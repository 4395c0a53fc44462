package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Repository persists kardex entries in the item store.
type Repository interface {
	Create(ctx context.Context, movement *StockMovement) error
	Get(ctx context.Context, sku, id string) (*StockMovement, error)
	ListBySKU(ctx context.Context, sku string) ([]StockMovement, error)
}

type repository struct {
	store itemstore.Store
}

// NewRepository returns a ledger repository bound to the provided item store.
func NewRepository(store itemstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Create(ctx context.Context, movement *StockMovement) error {
	_, err := r.store.Create(ctx, itemstore.StockMovementKey(movement.SKU, movement.ID), movement)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("stock movement %s already exists", movement.ID))
	}
	return err
}

func (r *repository) Get(ctx context.Context, sku, id string) (*StockMovement, error) {
	rec, err := r.store.Get(ctx, itemstore.StockMovementKey(sku, id))
	if errors.Is(err, itemstore.ErrNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "stock movement %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	var m StockMovement
	if err := rec.Decode(&m); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock movement")
	}
	return &m, nil
}

func (r *repository) ListBySKU(ctx context.Context, sku string) ([]StockMovement, error) {
	records, err := r.store.Query(ctx, itemstore.StockMovementPartition(sku), "")
	if err != nil {
		return nil, err
	}
	movements := make([]StockMovement, 0, len(records))
	for i := range records {
		var m StockMovement
		if err := records[i].Decode(&m); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock movement")
		}
		movements = append(movements, m)
	}
	return movements, nil
}
