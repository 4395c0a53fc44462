package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/ledger"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Catalog writes the bindings the resolver reads. Product and supplier CRUD
// lives in the catalog service; this is the subset the bridge seeds and syncs.
type Catalog struct {
	store  itemstore.Store
	ledger ledger.Service
}

// NewCatalog returns a catalog writer over the item store. When ledgerSvc is
// set, stock resets are recorded as "set" kardex entries.
func NewCatalog(store itemstore.Store, ledgerSvc ledger.Service) (*Catalog, error) {
	if store == nil {
		return nil, fmt.Errorf("item store required")
	}
	return &Catalog{store: store, ledger: ledgerSvc}, nil
}

// BindProduct maps a marketplace SKU to a product.
func (c *Catalog) BindProduct(ctx context.Context, sku, productID string) error {
	if strings.TrimSpace(sku) == "" || strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku and product id are required")
	}
	_, err := c.store.Put(ctx, itemstore.ProductBySKUKey(sku), productDoc{ProductID: productID, SKU: sku})
	return err
}

// SaveSupplier writes the supplier profile.
func (c *Catalog) SaveSupplier(ctx context.Context, supplier Supplier) error {
	if strings.TrimSpace(supplier.SupplierID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	_, err := c.store.Put(ctx, itemstore.SupplierProfileKey(supplier.SupplierID), supplier)
	return err
}

// SetStockBinding sets a supplier's price and absolute stock for a product SKU.
func (c *Catalog) SetStockBinding(ctx context.Context, productID, sku, supplierID string, price decimal.Decimal, quantity int64) (*StockBinding, error) {
	if productID == "" || sku == "" || supplierID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id, sku and supplier id are required")
	}
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production price must not be negative")
	}
	rec, err := c.store.Put(ctx, itemstore.StockBindingKey(productID, sku, supplierID), StockBinding{
		ProductID:       productID,
		SKU:             sku,
		SupplierID:      supplierID,
		ProductionPrice: price,
		Quantity:        quantity,
	})
	if err != nil {
		return nil, err
	}
	if c.ledger != nil {
		if _, err := c.ledger.Append(ctx, ledger.AppendInput{
			SKU:        sku,
			ProductID:  productID,
			Quantity:   quantity,
			Operation:  enums.StockMovementOperationSet,
			SupplierID: supplierID,
		}); err != nil {
			return nil, err
		}
	}
	return decodeBinding(rec)
}
