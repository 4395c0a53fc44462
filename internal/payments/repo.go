package payments

import (
	"context"
	"errors"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Repository stores payment obligations under the seller partition.
type Repository interface {
	// Create persists a new obligation. It reports false when one already
	// exists for the same natural key; the stored one is left untouched.
	Create(ctx context.Context, obligation *Obligation) (bool, error)
	Get(ctx context.Context, sellerID, paymentID string) (*Obligation, error)
	ListBySeller(ctx context.Context, sellerID string, status enums.PaymentStatus) ([]Obligation, error)
	// MarkPaid moves a pending obligation to paid. It reports false when the
	// obligation was already paid by someone else.
	MarkPaid(ctx context.Context, obligation *Obligation, at time.Time) (bool, error)
}

type repository struct {
	store itemstore.Store
}

// NewRepository returns an obligation repository bound to the provided item store.
func NewRepository(store itemstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Create(ctx context.Context, obligation *Obligation) (bool, error) {
	rec, err := r.store.Create(ctx, itemstore.ObligationKey(obligation.SellerID, obligation.PaymentID), obligation)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	obligation.record = rec
	return true, nil
}

func (r *repository) Get(ctx context.Context, sellerID, paymentID string) (*Obligation, error) {
	rec, err := r.store.Get(ctx, itemstore.ObligationKey(sellerID, paymentID))
	if errors.Is(err, itemstore.ErrNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "payment %s not found for seller %s", paymentID, sellerID)
	}
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

func (r *repository) ListBySeller(ctx context.Context, sellerID string, status enums.PaymentStatus) ([]Obligation, error) {
	pk, prefix := itemstore.ObligationPrefix(sellerID)
	records, err := r.store.Query(ctx, pk, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Obligation, 0, len(records))
	for i := range records {
		o, err := decode(&records[i])
		if err != nil {
			return nil, err
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *repository) MarkPaid(ctx context.Context, obligation *Obligation, at time.Time) (bool, error) {
	current := obligation
	if current.record == nil {
		fresh, err := r.Get(ctx, obligation.SellerID, obligation.PaymentID)
		if err != nil {
			return false, err
		}
		current = fresh
	}
	if !current.IsPending() {
		return false, nil
	}

	next := *current
	next.Status = enums.PaymentStatusPaid
	completed := at
	next.CompletedAt = &completed

	rec, err := r.store.Update(ctx, current.record, &next)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		latest, getErr := r.Get(ctx, obligation.SellerID, obligation.PaymentID)
		if getErr != nil {
			return false, getErr
		}
		if !latest.IsPending() {
			return false, nil
		}
		return false, pkgerrors.Newf(pkgerrors.CodeConflict, "payment %s changed while marking it paid", obligation.PaymentID)
	}
	if err != nil {
		return false, err
	}
	*obligation = next
	obligation.record = rec
	return true, nil
}

func decode(rec *itemstore.Record) (*Obligation, error) {
	var o Obligation
	if err := rec.Decode(&o); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payment obligation")
	}
	o.record = rec
	return &o, nil
}
