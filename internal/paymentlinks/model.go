package paymentlinks

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/enums"
)

const tokenLength = 32

// Link is a consolidated gateway checkout covering several obligations of
// one seller.
type Link struct {
	LinkID      string                  `json:"linkId"`
	SellerID    string                  `json:"sellerId"`
	PaymentIDs  []string                `json:"paymentIds"`
	TotalAmount decimal.Decimal         `json:"totalAmount"`
	Token       string                  `json:"token"`
	CheckoutURL string                  `json:"checkoutUrl"`
	Status      enums.PaymentLinkStatus `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`

	// Amounts holds each obligation total as it was when the link was created.
	Amounts map[string]decimal.Decimal `json:"amounts,omitempty"`

	record *itemstore.Record
}

// IsPending reports whether the link still waits for the gateway.
func (l *Link) IsPending() bool {
	return l.Status == enums.PaymentLinkStatusPending
}

// TokenIndex maps a correlation token back to its link.
type TokenIndex struct {
	Token    string `json:"token"`
	SellerID string `json:"sellerId"`
	LinkID   string `json:"linkId"`
}

// Token derives the gateway correlation token from the ordered payment ids.
// The same ids in the same order always yield the same token.
func Token(paymentIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(paymentIDs, "|")))
	return hex.EncodeToString(sum[:])[:tokenLength]
}

// AmountInCents converts a decimal amount to integer cents, rounding half up.
func AmountInCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
