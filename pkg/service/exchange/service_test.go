package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/fxdate/infra/metrics"
	"github.com/amirasaad/fxdate/internal/fixtures"
	"github.com/amirasaad/fxdate/internal/fixtures/mocks"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedProvider blocks every fetch until release is closed.
type gatedProvider struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	table   func(base currency.Code) *core.RateTable
}

func newGatedProvider(t *testing.T) *gatedProvider {
	return &gatedProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
		table: func(base currency.Code) *core.RateTable {
			return fixtures.Table(t, base, "2024-01-01", nil)
		},
	}
}

func (p *gatedProvider) Name() string { return "gated" }

func (p *gatedProvider) Fetch(ctx context.Context, base currency.Code, _ string) (*core.RateTable, error) {
	p.calls.Add(1)
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
		return p.table(base), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEnsureRates_CachesResult(t *testing.T) {
	ctx := context.Background()
	table := fixtures.Table(t, currency.USD, "2024-01-02", nil)

	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.USD, "2024-01-02").Return(table, nil).Once()

	reg := prometheus.NewRegistry()
	m := metrics.NewExchange(reg)
	svc := New(p, nil, discardLogger(), WithMetrics(m))

	first, err := svc.EnsureRates(ctx, currency.USD, "2024-01-02")
	require.NoError(t, err)
	second, err := svc.EnsureRates(ctx, currency.USD, "2024-01-02")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheMisses.WithLabelValues("USD")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheHits.WithLabelValues("USD")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Fetches.WithLabelValues("mock", "USD")), 0)
}

func TestEnsureRates_LatestKey(t *testing.T) {
	ctx := context.Background()
	table := fixtures.Table(t, currency.GBP, "2024-05-01", nil)

	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.GBP, "").Return(table, nil).Once()

	cache := exchange.NewCache(exchange.CacheOptions{})
	svc := New(p, cache, discardLogger())

	got, err := svc.EnsureRates(ctx, currency.GBP, "")
	require.NoError(t, err)
	assert.Same(t, table, got)

	cached, err := cache.Get(ctx, core.NewCacheKey(currency.GBP, ""))
	require.NoError(t, err)
	assert.Same(t, table, cached)
}

func TestEnsureRates_ProviderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	fetchErr := &core.ProviderError{Provider: "mock", StatusCode: 503, Err: errors.New("unavailable")}

	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.USD, "2024-01-02").Return(nil, fetchErr).Twice()

	reg := prometheus.NewRegistry()
	m := metrics.NewExchange(reg)
	cache := exchange.NewCache(exchange.CacheOptions{})
	svc := New(p, cache, discardLogger(), WithMetrics(m))

	_, err := svc.EnsureRates(ctx, currency.USD, "2024-01-02")
	require.Error(t, err)
	assert.True(t, core.IsProviderError(err))
	assert.Equal(t, 0, cache.Len())

	// the next request retries the provider
	_, err = svc.EnsureRates(ctx, currency.USD, "2024-01-02")
	require.Error(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FetchErrors.WithLabelValues("mock", "provider")), 0)
}

func TestEnsureRates_InvalidBase(t *testing.T) {
	svc := New(nil, nil, discardLogger())
	_, err := svc.EnsureRates(context.Background(), "us", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidBase)
}

func TestEnsureRates_NoProvider(t *testing.T) {
	svc := New(nil, nil, discardLogger())
	_, err := svc.EnsureRates(context.Background(), currency.USD, "")
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestEnsureRates_CoalescesConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	p := newGatedProvider(t)
	svc := New(p, nil, discardLogger())

	results := make(chan *core.RateTable, 2)
	errs := make(chan error, 2)
	request := func() {
		table, err := svc.EnsureRates(ctx, "EUR", "2024-01-01")
		errs <- err
		results <- table
	}

	go request()
	<-p.started
	go request()

	// give the second caller a chance to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(p.release)

	for range 2 {
		require.NoError(t, <-errs)
	}
	a, b := <-results, <-results
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestEnsureRates_CallerCancelDoesNotAbortFetch(t *testing.T) {
	p := newGatedProvider(t)
	cache := exchange.NewCache(exchange.CacheOptions{})
	svc := New(p, cache, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.EnsureRates(ctx, currency.USD, "2024-01-01")
		done <- err
	}()

	<-p.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(p.release)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEnsureRates_FetchTimeout(t *testing.T) {
	p := newGatedProvider(t)
	svc := New(p, nil, discardLogger(), WithFetchTimeout(10*time.Millisecond))

	_, err := svc.EnsureRates(context.Background(), currency.USD, "2024-01-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequestRates(t *testing.T) {
	table := fixtures.Table(t, currency.CAD, "2024-01-02", nil)
	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.CAD, "2024-01-02").Return(table, nil).Once()

	svc := New(p, nil, discardLogger())
	ch := svc.RequestRates(context.Background(), currency.CAD, "2024-01-02")

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		assert.Same(t, table, res.Table)
		assert.Equal(t, "CAD2024-01-02", res.Key.String())
	case <-time.After(time.Second):
		t.Fatal("rates were not delivered")
	}

	_, open := <-ch
	assert.False(t, open)
}

type failingCache struct{}

func (failingCache) Get(context.Context, core.CacheKey) (*core.RateTable, error) {
	return nil, errors.New("cache down")
}

func (failingCache) Put(context.Context, core.CacheKey, *core.RateTable) error {
	return errors.New("cache down")
}

func TestEnsureRates_CacheFailureFallsBackToProvider(t *testing.T) {
	table := fixtures.Table(t, currency.USD, "2024-01-02", nil)
	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.USD, "2024-01-02").Return(table, nil).Once()

	svc := New(p, failingCache{}, discardLogger())
	got, err := svc.EnsureRates(context.Background(), currency.USD, "2024-01-02")
	require.NoError(t, err)
	assert.Same(t, table, got)
}

func TestRefreshRates_ReplacesCachedTable(t *testing.T) {
	ctx := context.Background()
	stale := fixtures.Table(t, currency.USD, "2024-05-01", nil)
	fresh := fixtures.Table(t, currency.USD, "2024-05-02", map[string]float64{"CAD": 1.4})

	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.USD, "").Return(stale, nil).Once()
	p.On("Fetch", mock.Anything, currency.USD, "").Return(fresh, nil).Once()

	svc := New(p, nil, discardLogger())
	got, err := svc.EnsureRates(ctx, currency.USD, "")
	require.NoError(t, err)
	assert.Same(t, stale, got)

	got, err = svc.RefreshRates(ctx, currency.USD, "")
	require.NoError(t, err)
	assert.Same(t, fresh, got)

	got, err = svc.EnsureRates(ctx, currency.USD, "")
	require.NoError(t, err)
	assert.Same(t, fresh, got)

	_, err = svc.RefreshRates(ctx, "usd", "")
	assert.ErrorIs(t, err, core.ErrInvalidBase)
}
