package enums

// ShipmentStatus tracks a supplier shipment created after payment.
type ShipmentStatus string

const (
	ShipmentStatusAwaitingShipment ShipmentStatus = "awaiting_shipment"
	ShipmentStatusShipped          ShipmentStatus = "shipped"
)

// IsValid reports whether the value matches a known shipment status.
func (s ShipmentStatus) IsValid() bool {
	switch s {
	case ShipmentStatusAwaitingShipment, ShipmentStatusShipped:
		return true
	default:
		return false
	}
}
