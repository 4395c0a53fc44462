package shopee

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

// Push codes handled by the bridge.
const (
	PushCodeHeartbeat   = 0
	PushCodeOrderStatus = 3
)

// PushMessage is the envelope of every Shopee push notification.
type PushMessage struct {
	Code      int             `json:"code"`
	ShopID    int64           `json:"shop_id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// OrderStatusPush is the data of a code 3 push.
type OrderStatusPush struct {
	OrderSN    string `json:"ordersn"`
	Status     string `json:"status"`
	UpdateTime int64  `json:"update_time"`
}

// DecodePush parses the push envelope.
func DecodePush(body []byte) (*PushMessage, error) {
	var msg PushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shopee push body")
	}
	return &msg, nil
}

// OrderStatus decodes the data of an order status push.
func (m *PushMessage) OrderStatus() (*OrderStatusPush, error) {
	if m.Code != PushCodeOrderStatus {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "push code %d is not an order status push", m.Code)
	}
	var data OrderStatusPush
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status push data")
	}
	if strings.TrimSpace(data.OrderSN) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order status push missing ordersn")
	}
	return &data, nil
}

// PushSignature computes the Authorization value Shopee sends with a push:
// hex(HMAC-SHA256(partnerKey, callbackURL + "|" + body)).
func PushSignature(callbackURL string, body []byte, partnerKey string) string {
	mac := hmac.New(sha256.New, []byte(partnerKey))
	mac.Write([]byte(callbackURL))
	mac.Write([]byte("|"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPush checks the Authorization header of a push in constant time.
func VerifyPush(callbackURL string, body []byte, authorization, partnerKey string) bool {
	if partnerKey == "" || authorization == "" {
		return false
	}
	expected := PushSignature(callbackURL, body, partnerKey)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(authorization))))
}
