// Package mockexchangerate is an offline rate provider with fixed reference
// rates, used for local development and demos.
package mockexchangerate

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
)

//go:embed rates.json
var referenceJSON []byte

// ProviderName identifies the mock provider.
const ProviderName = "mock"

// Provider derives cross rates from a fixed euro reference table. Dated
// requests drift slightly by day of year so different dates give
// different tables.
type Provider struct {
	reference map[string]float64
	now       func() time.Time
}

// New loads the embedded reference rates.
func New() (*Provider, error) {
	var reference map[string]float64
	if err := json.Unmarshal(referenceJSON, &reference); err != nil {
		return nil, fmt.Errorf("load reference rates: %w", err)
	}
	return &Provider{reference: reference, now: time.Now}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Fetch(ctx context.Context, base currency.Code, date string) (*core.RateTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if date == "" {
		date = p.now().UTC().Format(core.DateLayout)
	}
	day, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return nil, &core.ParseError{Field: "date", Input: date, Err: core.ErrInvalidDate}
	}

	baseRate, ok := p.reference[string(base)]
	if !ok {
		return nil, &core.ProviderError{
			Provider: ProviderName,
			Err:      fmt.Errorf("%w: %s", currency.ErrUnsupportedCurrency, base),
		}
	}

	drift := 1 + float64(day.YearDay()%7)/1000
	rates := make(map[string]float64, len(p.reference))
	for code, v := range p.reference {
		r := v / baseRate
		if code != string(base) {
			r *= drift
		}
		rates[code] = r
	}
	return core.NewRateTable(base, date, rates)
}

var _ exchange.Provider = (*Provider)(nil)
