package enums

// PaymentLinkStatus is the lifecycle of a consolidated checkout link.
type PaymentLinkStatus string

const (
	PaymentLinkStatusPending   PaymentLinkStatus = "pending"
	PaymentLinkStatusCompleted PaymentLinkStatus = "completed"
)

// IsValid reports whether the value matches a known link status.
func (s PaymentLinkStatus) IsValid() bool {
	switch s {
	case PaymentLinkStatusPending, PaymentLinkStatusCompleted:
		return true
	default:
		return false
	}
}
