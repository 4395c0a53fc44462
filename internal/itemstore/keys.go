package itemstore

import (
	"strconv"
	"strings"
)

// Partition and sort key layout of the items table.
const (
	sep = "#"

	skProduct     = "PRODUCT"
	skSeller      = "SELLER"
	skProfile     = "PROFILE"
	skLink        = "LINK"
	prefixSKU     = "SKU"
	prefixProduct = "PRODUCT"
	prefixShop    = "SHOP"
	prefixSupp    = "SUPPLIER"
	prefixKardex  = "KARDEX"
	prefixOrder   = "ORDER"
	prefixFanOut  = "FANOUT"
	prefixSeller  = "SELLER"
	prefixPayment = "PAYMENT"
	prefixLink    = "PAYMENTLINK"
	prefixToken   = "PAYMENTLINK_TOKEN"
	prefixShip    = "SHIPMENT"
)

func join(parts ...string) string { return strings.Join(parts, sep) }

// ProductBySKUKey holds the product id a marketplace SKU belongs to.
func ProductBySKUKey(sku string) Key {
	return Key{PK: join(prefixSKU, sku), SK: skProduct}
}

// StockBindingKey holds one supplier's price and stock for a product SKU.
func StockBindingKey(productID, sku, supplierID string) Key {
	return Key{PK: join(prefixProduct, productID), SK: join(prefixSKU, sku, prefixSupp, supplierID)}
}

// StockBindingPrefix selects every supplier binding of a product SKU.
func StockBindingPrefix(productID, sku string) (pk, skPrefix string) {
	return join(prefixProduct, productID), join(prefixSKU, sku, prefixSupp) + sep
}

// SellerByShopKey maps a marketplace shop to the seller owning it.
func SellerByShopKey(shopID int64) Key {
	return Key{PK: join(prefixShop, strconv.FormatInt(shopID, 10)), SK: skSeller}
}

// SupplierProfileKey holds supplier display data.
func SupplierProfileKey(supplierID string) Key {
	return Key{PK: join(prefixSupp, supplierID), SK: skProfile}
}

// StockMovementKey addresses one kardex entry. Movement ids are time ordered.
func StockMovementKey(sku, movementID string) Key {
	return Key{PK: join(prefixKardex, sku), SK: movementID}
}

// StockMovementPartition is the kardex partition of a SKU.
func StockMovementPartition(sku string) string {
	return join(prefixKardex, sku)
}

// FanOutCheckpointKey guards one supplier group of an order.
func FanOutCheckpointKey(orderID, supplierID string) Key {
	return Key{PK: join(prefixOrder, orderID), SK: join(prefixFanOut, supplierID)}
}

// KardexMarkerKey reserves the kardex entry id of one order line.
func KardexMarkerKey(orderID, lineKey string) Key {
	return Key{PK: join(prefixOrder, orderID), SK: join(prefixKardex, lineKey)}
}

// ObligationKey addresses a payment obligation inside the seller partition.
func ObligationKey(sellerID, paymentID string) Key {
	return Key{PK: join(prefixSeller, sellerID), SK: join(prefixPayment, paymentID)}
}

// ObligationPrefix selects every obligation of a seller.
func ObligationPrefix(sellerID string) (pk, skPrefix string) {
	return join(prefixSeller, sellerID), prefixPayment + sep
}

// PaymentLinkKey addresses a payment link inside the seller partition.
func PaymentLinkKey(sellerID, linkID string) Key {
	return Key{PK: join(prefixSeller, sellerID), SK: join(prefixLink, linkID)}
}

// PaymentLinkTokenKey indexes a payment link by its gateway correlation token.
func PaymentLinkTokenKey(token string) Key {
	return Key{PK: join(prefixToken, token), SK: skLink}
}

// ShipmentKey addresses a supplier shipment.
func ShipmentKey(supplierID, shipmentID string) Key {
	return Key{PK: join(prefixSupp, supplierID), SK: join(prefixShip, shipmentID)}
}

// ShipmentPrefix selects every shipment of a supplier.
func ShipmentPrefix(supplierID string) (pk, skPrefix string) {
	return join(prefixSupp, supplierID), prefixShip + sep
}
