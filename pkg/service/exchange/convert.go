package exchange

import "github.com/amirasaad/fxdate/pkg/exchange/core"

// Convert returns amount multiplied by the rate at targetIndex, or 0 when
// the table is missing or the index is out of range.
func Convert(amount float64, table *core.RateTable, targetIndex int) float64 {
	rate, ok := table.RateAt(targetIndex)
	if !ok {
		return 0
	}
	return amount * rate
}

// ConvertInverse maps a target amount back to the base through the base's
// own rate in the same table. Both rates come from one snapshot.
func ConvertInverse(targetAmount float64, table *core.RateTable, targetIndex, baseIndex int) float64 {
	rate, ok := table.RateAt(targetIndex)
	if !ok {
		return 0
	}
	return Convert(targetAmount/rate, table, baseIndex)
}
