package suppliers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/logger"
)

const (
	// decrementAttempts bounds the compare-and-swap loop on a contended stock counter.
	decrementAttempts = 3
	// appliedKeysLimit caps the decrement keys remembered on a binding.
	appliedKeysLimit = 256
)

// Resolver maps marketplace identifiers to products, sellers and suppliers.
// Lookups that find nothing return a nil result and a nil error.
type Resolver interface {
	ResolveProductID(ctx context.Context, sku string) (string, error)
	ResolveStockBinding(ctx context.Context, productID, sku string) (*StockBinding, error)
	ResolveSeller(ctx context.Context, shopID int64) (*Seller, error)
	SaveSeller(ctx context.Context, seller Seller) error
	DecrementStock(ctx context.Context, binding *StockBinding, quantity int64, applyKey string) (*StockBinding, bool, error)
}

// ResolverParams wires the resolver collaborators.
type ResolverParams struct {
	Store  itemstore.Store
	Cache  SellerCache
	Logger *logger.Logger
}

type resolver struct {
	store itemstore.Store
	cache SellerCache
	logg  *logger.Logger
}

// NewResolver builds a Resolver over the item store. A nil cache disables caching.
func NewResolver(params ResolverParams) (Resolver, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("item store required")
	}
	cache := params.Cache
	if cache == nil {
		cache = noopSellerCache{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &resolver{store: params.Store, cache: cache, logg: logg}, nil
}

func (r *resolver) ResolveProductID(ctx context.Context, sku string) (string, error) {
	if strings.TrimSpace(sku) == "" {
		return "", nil
	}
	rec, err := r.store.Get(ctx, itemstore.ProductBySKUKey(sku))
	if errors.Is(err, itemstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var doc productDoc
	if err := rec.Decode(&doc); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode product binding")
	}
	return doc.ProductID, nil
}

func (r *resolver) ResolveStockBinding(ctx context.Context, productID, sku string) (*StockBinding, error) {
	pk, prefix := itemstore.StockBindingPrefix(productID, sku)
	records, err := r.store.Query(ctx, pk, prefix)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: product %s sku %s has %d bindings", ErrAmbiguousBinding, productID, sku, len(records))
	}

	binding, err := decodeBinding(&records[0])
	if err != nil {
		return nil, err
	}
	binding.SupplierName = r.supplierName(ctx, binding.SupplierID)
	return binding, nil
}

func (r *resolver) supplierName(ctx context.Context, supplierID string) string {
	rec, err := r.store.Get(ctx, itemstore.SupplierProfileKey(supplierID))
	if err != nil {
		if !errors.Is(err, itemstore.ErrNotFound) {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"supplier_id": supplierID, "error": err.Error()}), "supplier profile lookup failed")
		}
		return ""
	}
	var supplier Supplier
	if err := rec.Decode(&supplier); err != nil {
		return ""
	}
	return supplier.Name
}

func (r *resolver) ResolveSeller(ctx context.Context, shopID int64) (*Seller, error) {
	if shopID == 0 {
		return nil, nil
	}
	cached, ok, err := r.cache.Get(ctx, shopID)
	if err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"shop_id": shopID, "error": err.Error()}), "seller cache read failed")
	}
	if ok {
		return cached, nil
	}

	rec, err := r.store.Get(ctx, itemstore.SellerByShopKey(shopID))
	if errors.Is(err, itemstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var seller Seller
	if err := rec.Decode(&seller); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode seller")
	}
	seller.ShopID = shopID
	if err := r.cache.Set(ctx, seller); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"shop_id": shopID, "error": err.Error()}), "seller cache write failed")
	}
	return &seller, nil
}

func (r *resolver) SaveSeller(ctx context.Context, seller Seller) error {
	if strings.TrimSpace(seller.SellerID) == "" || seller.ShopID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id and shop id are required")
	}
	if _, err := r.store.Put(ctx, itemstore.SellerByShopKey(seller.ShopID), seller); err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx, seller.ShopID); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"shop_id": seller.ShopID, "error": err.Error()}), "seller cache invalidation failed")
	}
	return nil
}

// DecrementStock subtracts quantity from the binding's stock counter with a
// version-checked write, re-reading on a lost race. applyKey is stored in the
// same write; a key already on the binding leaves the counter alone and
// reports false. The counter may go negative: the marketplace already sold
// the units.
func (r *resolver) DecrementStock(ctx context.Context, binding *StockBinding, quantity int64, applyKey string) (*StockBinding, bool, error) {
	if binding == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "stock binding is required")
	}
	if quantity <= 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if strings.TrimSpace(applyKey) == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "apply key is required")
	}
	key := itemstore.StockBindingKey(binding.ProductID, binding.SKU, binding.SupplierID)
	current := binding.record

	for attempt := 0; attempt < decrementAttempts; attempt++ {
		if current == nil {
			rec, err := r.store.Get(ctx, key)
			if err != nil {
				return nil, false, err
			}
			current = rec
		}
		next, err := decodeBinding(current)
		if err != nil {
			return nil, false, err
		}
		if slices.Contains(next.AppliedKeys, applyKey) {
			next.SupplierName = binding.SupplierName
			return next, false, nil
		}
		next.Quantity -= quantity
		next.AppliedKeys = append(next.AppliedKeys, applyKey)
		if over := len(next.AppliedKeys) - appliedKeysLimit; over > 0 {
			next.AppliedKeys = next.AppliedKeys[over:]
		}

		updated, err := r.store.Update(ctx, current, next)
		if errors.Is(err, itemstore.ErrConditionFailed) {
			current = nil
			continue
		}
		if err != nil {
			return nil, false, err
		}

		out, err := decodeBinding(updated)
		if err != nil {
			return nil, false, err
		}
		out.SupplierName = binding.SupplierName
		if out.Quantity < 0 {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"sku":         out.SKU,
				"supplier_id": out.SupplierID,
				"quantity":    out.Quantity,
			}), "supplier stock went negative")
		}
		return out, true, nil
	}
	return nil, false, pkgerrors.Newf(pkgerrors.CodeConflict, "stock for sku %s supplier %s kept changing", binding.SKU, binding.SupplierID)
}

func decodeBinding(rec *itemstore.Record) (*StockBinding, error) {
	var binding StockBinding
	if err := rec.Decode(&binding); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock binding")
	}
	binding.Version = rec.Version
	binding.record = rec
	return &binding, nil
}
