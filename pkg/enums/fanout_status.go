package enums

// FanOutStatus is the state of one supplier group checkpoint for an order.
type FanOutStatus string

const (
	FanOutStatusInProgress FanOutStatus = "in_progress"
	FanOutStatusCompleted  FanOutStatus = "completed"
	FanOutStatusFailed     FanOutStatus = "failed"
)

// IsValid reports whether the value matches a known fan-out status.
func (s FanOutStatus) IsValid() bool {
	switch s {
	case FanOutStatusInProgress, FanOutStatusCompleted, FanOutStatusFailed:
		return true
	default:
		return false
	}
}
