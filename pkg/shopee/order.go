package shopee

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// OrderStatusReadyToShip is the only status that triggers supplier fan-out.
const OrderStatusReadyToShip = "READY_TO_SHIP"

var (
	ErrMissingSKU      = errors.New("order line has no sku")
	ErrInvalidQuantity = errors.New("order line quantity must be positive")
)

// OrderDetail is the subset of get_order_detail the bridge consumes.
type OrderDetail struct {
	OrderSN string
	Status  string
	Lines   []LineResult
}

// OrderLine is one purchased model of an order.
type OrderLine struct {
	ItemID    int64
	ModelID   int64
	SKU       string
	Quantity  int64
	UnitPrice decimal.Decimal
	ImageURL  string
}

// LineResult carries a decoded line or the reason it could not be decoded.
type LineResult struct {
	Index int
	Line  OrderLine
	Err   error
}

type orderDetailEnvelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Response  *struct {
		OrderList []struct {
			OrderSN     string            `json:"order_sn"`
			OrderStatus string            `json:"order_status"`
			ItemList    []json.RawMessage `json:"item_list"`
		} `json:"order_list"`
	} `json:"response"`
}

type rawItem struct {
	ItemID                 int64           `json:"item_id"`
	ItemSKU                string          `json:"item_sku"`
	ModelID                int64           `json:"model_id"`
	ModelSKU               string          `json:"model_sku"`
	ModelQuantityPurchased int64           `json:"model_quantity_purchased"`
	ModelDiscountedPrice   decimal.Decimal `json:"model_discounted_price"`
	ImageInfo              struct {
		ImageURL string `json:"image_url"`
	} `json:"image_info"`
}

// DecodeOrderDetail parses a get_order_detail body. A body without an order
// or without items fails as a whole; a malformed line only fails that line.
func DecodeOrderDetail(body []byte) (*OrderDetail, error) {
	var env orderDetailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shopee order detail")
	}
	if env.Error != "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "shopee order detail error %s: %s", env.Error, env.Message)
	}
	if env.Response == nil || len(env.Response.OrderList) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopee order detail has no order_list")
	}

	order := env.Response.OrderList[0]
	if len(order.ItemList) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "shopee order %s has no item_list", order.OrderSN)
	}

	detail := &OrderDetail{
		OrderSN: order.OrderSN,
		Status:  order.OrderStatus,
		Lines:   make([]LineResult, 0, len(order.ItemList)),
	}
	for i, raw := range order.ItemList {
		line, err := decodeLine(raw)
		detail.Lines = append(detail.Lines, LineResult{Index: i, Line: line, Err: err})
	}
	return detail, nil
}

func decodeLine(raw json.RawMessage) (OrderLine, error) {
	var item rawItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return OrderLine{}, fmt.Errorf("decode order line: %w", err)
	}
	sku := strings.TrimSpace(item.ModelSKU)
	if sku == "" {
		sku = strings.TrimSpace(item.ItemSKU)
	}
	line := OrderLine{
		ItemID:    item.ItemID,
		ModelID:   item.ModelID,
		SKU:       sku,
		Quantity:  item.ModelQuantityPurchased,
		UnitPrice: item.ModelDiscountedPrice,
		ImageURL:  item.ImageInfo.ImageURL,
	}
	if sku == "" {
		return line, ErrMissingSKU
	}
	if line.Quantity <= 0 {
		return line, ErrInvalidQuantity
	}
	return line, nil
}
