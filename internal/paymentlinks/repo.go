package paymentlinks

import (
	"context"
	"errors"
	"time"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Repository persists payment links and their token index.
type Repository interface {
	// ClaimToken indexes token for the link. It reports false, with the
	// current owner, when the token is already indexed.
	ClaimToken(ctx context.Context, token, sellerID, linkID string) (bool, *TokenIndex, error)
	// Create stores the link; an existing link with the same id is returned
	// unchanged.
	Create(ctx context.Context, link *Link) (*Link, error)
	Get(ctx context.Context, sellerID, linkID string) (*Link, error)
	GetByToken(ctx context.Context, token string) (*Link, error)
	// MarkCompleted moves the link to completed. A completed link is left as is.
	MarkCompleted(ctx context.Context, link *Link, at time.Time) error
}

type repository struct {
	store itemstore.Store
}

// NewRepository returns the item-store backed link repository.
func NewRepository(store itemstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) ClaimToken(ctx context.Context, token, sellerID, linkID string) (bool, *TokenIndex, error) {
	key := itemstore.PaymentLinkTokenKey(token)
	_, err := r.store.Create(ctx, key, TokenIndex{Token: token, SellerID: sellerID, LinkID: linkID})
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, itemstore.ErrConditionFailed) {
		return false, nil, err
	}
	idx, err := r.index(ctx, token)
	if err != nil {
		return false, nil, err
	}
	return false, idx, nil
}

func (r *repository) Create(ctx context.Context, link *Link) (*Link, error) {
	rec, err := r.store.Create(ctx, itemstore.PaymentLinkKey(link.SellerID, link.LinkID), link)
	if errors.Is(err, itemstore.ErrConditionFailed) {
		return r.Get(ctx, link.SellerID, link.LinkID)
	}
	if err != nil {
		return nil, err
	}
	link.record = rec
	return link, nil
}

func (r *repository) Get(ctx context.Context, sellerID, linkID string) (*Link, error) {
	rec, err := r.store.Get(ctx, itemstore.PaymentLinkKey(sellerID, linkID))
	if errors.Is(err, itemstore.ErrNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "payment link %s not found", linkID)
	}
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Link, error) {
	idx, err := r.index(ctx, token)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, idx.SellerID, idx.LinkID)
}

func (r *repository) MarkCompleted(ctx context.Context, link *Link, at time.Time) error {
	current := link
	for attempt := 0; attempt < 2; attempt++ {
		if current.record == nil || attempt > 0 {
			fresh, err := r.Get(ctx, link.SellerID, link.LinkID)
			if err != nil {
				return err
			}
			current = fresh
		}
		if current.Status == enums.PaymentLinkStatusCompleted {
			*link = *current
			return nil
		}
		next := *current
		next.Status = enums.PaymentLinkStatusCompleted
		completed := at
		next.CompletedAt = &completed

		rec, err := r.store.Update(ctx, current.record, &next)
		if errors.Is(err, itemstore.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return err
		}
		next.record = rec
		*link = next
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeConflict, "payment link %s kept changing", link.LinkID)
}

func (r *repository) index(ctx context.Context, token string) (*TokenIndex, error) {
	rec, err := r.store.Get(ctx, itemstore.PaymentLinkTokenKey(token))
	if errors.Is(err, itemstore.ErrNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no payment link for token %s", token)
	}
	if err != nil {
		return nil, err
	}
	var idx TokenIndex
	if err := rec.Decode(&idx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payment link token")
	}
	return &idx, nil
}

func decode(rec *itemstore.Record) (*Link, error) {
	var link Link
	if err := rec.Decode(&link); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payment link")
	}
	link.record = rec
	return &link, nil
}
