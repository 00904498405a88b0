package enums

import "fmt"

// StockChangeType maps to the stock_change_type_enum enum in Postgres.
type StockChangeType string

const (
	StockChangeTypeSupply           StockChangeType = "supply"
	StockChangeTypeManualAdjustment StockChangeType = "manual_adjustment"
)

var validStockChangeTypes = []StockChangeType{
	StockChangeTypeSupply,
	StockChangeTypeManualAdjustment,
}

// String implements fmt.Stringer.
func (t StockChangeType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical change type enum.
func (t StockChangeType) IsValid() bool {
	for _, candidate := range validStockChangeTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockChangeType converts raw input into StockChangeType.
func ParseStockChangeType(value string) (StockChangeType, error) {
	for _, candidate := range validStockChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change type %q", value)
}
