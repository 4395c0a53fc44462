package gatewaywebhook

import (
	"github.com/shopspring/decimal"
)

// Paid amount policies for the shipments of one link.
const (
	PolicyReplicate = "replicate"
	PolicyProrate   = "prorate"
)

// PaymentConfirmation is the gateway notice that a checkout link was paid.
type PaymentConfirmation struct {
	// Token is the correlation token sent as order_nsu on the checkout link.
	Token          string
	TransactionNSU string
	InvoiceSlug    string
	CaptureMethod  string
	ReceiptURL     string
	PaidAmount     decimal.Decimal
	Installments   int
}

// ObligationFailure is one obligation the reconciliation could not settle.
type ObligationFailure struct {
	PaymentID string `json:"paymentId"`
	Error     string `json:"error"`
}

// ReconcileResult counts what happened to each obligation of the link.
type ReconcileResult struct {
	LinkID           string              `json:"linkId"`
	SellerID         string              `json:"sellerId"`
	Succeeded        int                 `json:"succeeded"`
	AlreadyProcessed int                 `json:"alreadyProcessed"`
	Failed           int                 `json:"failed"`
	Failures         []ObligationFailure `json:"failures,omitempty"`
}
