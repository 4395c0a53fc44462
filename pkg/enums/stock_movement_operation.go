package enums

// StockMovementOperation tags a kardex entry.
type StockMovementOperation string

const (
	StockMovementOperationSet    StockMovementOperation = "set"
	StockMovementOperationRemove StockMovementOperation = "remove"
)

var validStockMovementOperations = []StockMovementOperation{
	StockMovementOperationSet,
	StockMovementOperationRemove,
}

// IsValid reports whether the value matches a known stock movement operation.
func (o StockMovementOperation) IsValid() bool {
	for _, candidate := range validStockMovementOperations {
		if candidate == o {
			return true
		}
	}
	return false
}
