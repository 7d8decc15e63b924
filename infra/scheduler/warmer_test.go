package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/amirasaad/fxdate/internal/fixtures"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	t    *testing.T
	mu   sync.Mutex
	got  []core.CacheKey
	fail map[currency.Code]bool
}

func (r *recordingRefresher) RefreshRates(_ context.Context, base currency.Code, date string) (*core.RateTable, error) {
	r.mu.Lock()
	r.got = append(r.got, core.NewCacheKey(base, date))
	r.mu.Unlock()
	if r.fail[base] {
		return nil, &core.ProviderError{Provider: "test", StatusCode: 503, Err: errors.New("unavailable")}
	}
	return fixtures.Table(r.t, base, "2024-03-15", nil), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWarmer_RunNowRefreshesConfiguredAndPreferredBases(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	require.NoError(t, prefs.SetInt(ctx, preferences.BaseIndexKey, 0))

	r := &recordingRefresher{t: t, fail: map[currency.Code]bool{currency.JPY: true}}
	w, err := NewWarmer(r, prefs, []string{"cad", "JPY", "CAD"}, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, w.RunNow(ctx))
	assert.Equal(t, []core.CacheKey{
		core.NewCacheKey(currency.CAD, ""),
		core.NewCacheKey(currency.JPY, ""),
		core.NewCacheKey(currency.USD, ""),
	}, r.got)
}

func TestWarmer_WithoutPreferences(t *testing.T) {
	r := &recordingRefresher{t: t}
	w, err := NewWarmer(r, nil, []string{"GBP"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, w.RunNow(context.Background()))
	assert.Equal(t, []core.CacheKey{{Base: currency.GBP, Date: core.Latest}}, r.got)
}

func TestNewWarmer_Validation(t *testing.T) {
	_, err := NewWarmer(nil, nil, nil, quietLogger())
	assert.Error(t, err)

	_, err = NewWarmer(&recordingRefresher{t: t}, nil, []string{"XXX"}, quietLogger())
	assert.ErrorIs(t, err, currency.ErrUnsupportedCurrency)
}

func TestWarmer_Register(t *testing.T) {
	w, err := NewWarmer(&recordingRefresher{t: t}, nil, nil, quietLogger())
	require.NoError(t, err)

	require.NoError(t, w.Register("@every 1h"))
	require.NoError(t, w.Register("0 6 * * *"))
	assert.Error(t, w.Register("not a schedule"))

	w.Start()
	w.Stop()
}
