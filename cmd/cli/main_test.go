package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/amirasaad/fxdate/internal/fixtures"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	exchangesvc "github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureProvider struct{}

func (fixtureProvider) Name() string { return "fixture" }

func (fixtureProvider) Fetch(_ context.Context, base currency.Code, date string) (*core.RateTable, error) {
	if date == "" {
		date = "2024-03-15"
	}
	return core.NewRateTable(base, date, fixtures.RawRates(base, nil))
}

func newService() *exchangesvc.Service {
	return exchangesvc.New(fixtureProvider{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_Convert(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), newService(), []string{"convert", "cad", "gbp", "100", "2020-02-29"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "100 CAD = 137.5 GBP\nrate 1.375 as of 2020-02-29\n", out.String())
}

func TestRun_Rates(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), newService(), []string{"rates", "USD"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "USD rates as of 2024-03-15")
	assert.Contains(t, out.String(), "GBP")
	assert.Contains(t, out.String(), "1.375")
}

func TestRun_Currencies(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), newService(), []string{"currencies"}, &out))
	assert.Contains(t, out.String(), " 0 USD\n")
	assert.Contains(t, out.String(), "31 DKK\n")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, err error)
	}{
		{name: "no command", args: nil, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, errUsage) }},
		{name: "unknown command", args: []string{"balance"}, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, errUsage) }},
		{name: "missing amount", args: []string{"convert", "USD", "GBP"}, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, errUsage) }},
		{name: "unsupported currency", args: []string{"convert", "USD", "EUR", "1"}, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, currency.ErrUnsupportedCurrency)
		}},
		{name: "bad amount", args: []string{"convert", "USD", "GBP", "ten"}, check: func(t *testing.T, err error) {
			assert.True(t, core.IsParseError(err))
		}},
		{name: "impossible date", args: []string{"rates", "USD", "2023-02-29"}, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, core.ErrInvalidDate)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), newService(), tt.args, io.Discard)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
