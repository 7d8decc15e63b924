// Package fixtures holds test data shared across packages.
package fixtures

import (
	"testing"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/stretchr/testify/require"
)

// RawRates returns a complete rate map: 1.0 for the base currency and a
// distinct positive rate for every other code. overrides replace entries.
func RawRates(base currency.Code, overrides map[string]float64) map[string]float64 {
	raw := make(map[string]float64, currency.Count())
	for i, c := range currency.All() {
		raw[string(c)] = 1 + float64(i+1)/8
	}
	raw[string(base)] = 1
	for k, v := range overrides {
		raw[k] = v
	}
	return raw
}

// Table builds a validated table or fails the test.
func Table(t testing.TB, base currency.Code, date string, overrides map[string]float64) *core.RateTable {
	t.Helper()
	table, err := core.NewRateTable(base, date, RawRates(base, overrides))
	require.NoError(t, err)
	return table
}
