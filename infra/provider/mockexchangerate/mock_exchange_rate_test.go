package mockexchangerate

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Fetch(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	table, err := p.Fetch(ctx, currency.USD, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", table.Date())
	usd, _ := table.Rate(currency.USD)
	assert.InDelta(t, 1, usd, 1e-12)
	assert.Len(t, table.Rates(), currency.Count())

	again, err := p.Fetch(ctx, currency.USD, "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, table.Rates(), again.Rates())

	other, err := p.Fetch(ctx, currency.USD, "2024-01-04")
	require.NoError(t, err)
	assert.NotEqual(t, table.Rates(), other.Rates())

	eur, err := p.Fetch(ctx, "EUR", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, currency.Code("EUR"), eur.Base())
}

func TestProvider_FetchErrors(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "XXX", "")
	assert.True(t, core.IsProviderError(err))

	_, err = p.Fetch(context.Background(), currency.USD, "2024-13-01")
	assert.True(t, core.IsParseError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Fetch(ctx, currency.USD, "")
	assert.ErrorIs(t, err, context.Canceled)
}
