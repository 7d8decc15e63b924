package mocks

import (
	"context"
	"testing"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"github.com/stretchr/testify/mock"
)

// RateProvider is a testify mock of exchange.Provider.
type RateProvider struct {
	mock.Mock
}

// NewRateProvider creates a mock that asserts its expectations on cleanup.
func NewRateProvider(t *testing.T) *RateProvider {
	m := &RateProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *RateProvider) Fetch(
	ctx context.Context,
	base currency.Code,
	date string,
) (*core.RateTable, error) {
	args := m.Called(ctx, base, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.RateTable), args.Error(1)
}

func (m *RateProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

var _ exchange.Provider = (*RateProvider)(nil)
