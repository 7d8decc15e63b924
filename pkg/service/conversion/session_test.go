package conversion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/fxdate/infra/eventbus"
	"github.com/amirasaad/fxdate/internal/fixtures"
	"github.com/amirasaad/fxdate/internal/fixtures/mocks"
	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const today = "2024-03-15"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
}

// scriptedRates records every request and lets the test answer them in
// any order.
type scriptedRates struct {
	mu       sync.Mutex
	keys     []core.CacheKey
	replies  []chan core.RatesResult
	notified chan struct{}
}

func newScriptedRates() *scriptedRates {
	return &scriptedRates{notified: make(chan struct{}, 16)}
}

func (r *scriptedRates) RequestRates(_ context.Context, base currency.Code, date string) <-chan core.RatesResult {
	ch := make(chan core.RatesResult, 1)
	r.mu.Lock()
	r.keys = append(r.keys, core.NewCacheKey(base, date))
	r.replies = append(r.replies, ch)
	r.mu.Unlock()
	r.notified <- struct{}{}
	return ch
}

func (r *scriptedRates) reply(i int, table *core.RateTable, err error) {
	r.mu.Lock()
	ch := r.replies[i]
	key := r.keys[i]
	r.mu.Unlock()
	ch <- core.RatesResult{Key: key, Table: table, Err: err}
}

func (r *scriptedRates) requested() []core.CacheKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.CacheKey(nil), r.keys...)
}

func wait(t *testing.T, p *Pending) (View, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func newTestSession(
	t *testing.T,
	rates RateSource,
	prefs preferences.Store,
) (*Session, *infraeventbus.MemoryEventBus) {
	t.Helper()
	bus := infraeventbus.NewWithMemory(discardLogger(), infraeventbus.WithHistory(64))
	s := NewSession("s1", rates, prefs,
		WithBus(bus),
		WithLogger(discardLogger()),
		WithClock(fixedNow),
	)
	return s, bus
}

func eventTypes(bus *infraeventbus.MemoryEventBus) []string {
	var out []string
	for _, e := range bus.Published() {
		out = append(out, e.Type())
	}
	return out
}

func TestSession_StartUsesDefaults(t *testing.T) {
	table := fixtures.Table(t, currency.CAD, today, nil)
	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.CAD, today).Return(table, nil).Once()

	svc := exchange.New(p, nil, discardLogger())
	s, bus := newTestSession(t, svc, nil)

	assert.Equal(t, Uninitialized, s.View().State)
	assert.Equal(t, "1", s.View().BaseAmount)

	view, err := wait(t, s.Start(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, RatesLoaded, view.State)
	assert.Equal(t, "CAD", view.Base)
	assert.Equal(t, "GBP", view.Target)
	assert.Equal(t, today, view.Date)
	assert.Equal(t, today, view.RatesDate)
	assert.False(t, view.Stale)
	assert.Equal(t, "1", view.BaseAmount)
	assert.Equal(t, "1.375", view.TargetAmount)
	assert.Equal(t, []string{EventRatesLoaded}, eventTypes(bus))
}

func TestSession_ConvertsBothWays(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	require.NoError(t, prefs.SetInt(ctx, preferences.BaseIndexKey, 0))
	require.NoError(t, prefs.SetInt(ctx, preferences.TargetIndexKey, 1))

	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, prefs)
	pending := s.Start(ctx)
	<-rates.notified
	rates.reply(0, fixtures.Table(t, currency.USD, today, map[string]float64{"CAD": 1.34}), nil)
	_, err := wait(t, pending)
	require.NoError(t, err)

	view, err := s.SetBaseAmount("100")
	require.NoError(t, err)
	assert.Equal(t, "USD", view.Base)
	assert.Equal(t, "CAD", view.Target)
	assert.Equal(t, "134", view.TargetAmount)
	assert.Equal(t, "1.34", view.Rate)

	view, err = s.SetTargetAmount("67")
	require.NoError(t, err)
	assert.Equal(t, "50", view.BaseAmount)
	assert.Equal(t, "67", view.TargetAmount)
}

func TestSession_RejectsBadAmounts(t *testing.T) {
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, nil)
	pending := s.Start(context.Background())
	<-rates.notified
	rates.reply(0, fixtures.Table(t, currency.CAD, today, nil), nil)
	_, err := wait(t, pending)
	require.NoError(t, err)

	_, err = s.SetBaseAmount("12")
	require.NoError(t, err)
	before := s.View()

	view, err := s.SetBaseAmount("12a")
	require.Error(t, err)
	assert.True(t, core.IsParseError(err))
	assert.Equal(t, before, view)

	_, err = s.SetTargetAmount("-5")
	assert.ErrorIs(t, err, ErrNegativeAmount)
	assert.Equal(t, before, s.View())

	view, err = s.SetBaseAmount("  ")
	require.NoError(t, err)
	assert.Equal(t, "0", view.BaseAmount)
	assert.Equal(t, "0", view.TargetAmount)
}

func TestSession_SelectionIsPersisted(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, prefs)

	_, err := s.SelectBase(ctx, 5)
	require.NoError(t, err)
	_, err = s.SelectTarget(ctx, 7)
	require.NoError(t, err)

	base, _ := prefs.GetInt(ctx, preferences.BaseIndexKey, -1)
	target, _ := prefs.GetInt(ctx, preferences.TargetIndexKey, -1)
	assert.Equal(t, 5, base)
	assert.Equal(t, 7, target)

	_, err = s.SelectBase(ctx, currency.Count())
	assert.ErrorIs(t, err, currency.ErrInvalidIndex)
	_, err = s.SelectTarget(ctx, -1)
	assert.ErrorIs(t, err, currency.ErrInvalidIndex)
}

func TestSession_OutOfRangePreferenceFallsBack(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	require.NoError(t, prefs.SetInt(ctx, preferences.BaseIndexKey, 99))

	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, prefs)
	s.Start(ctx)
	<-rates.notified

	assert.Equal(t, []core.CacheKey{core.NewCacheKey(currency.CAD, today)}, rates.requested())
}

func TestSession_SwapRefetches(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	require.NoError(t, prefs.SetInt(ctx, preferences.BaseIndexKey, 0))
	require.NoError(t, prefs.SetInt(ctx, preferences.TargetIndexKey, 1))

	p := mocks.NewRateProvider(t)
	p.On("Name").Return("mock")
	p.On("Fetch", mock.Anything, currency.USD, today).
		Return(fixtures.Table(t, currency.USD, today, map[string]float64{"CAD": 1.25}), nil).Once()
	p.On("Fetch", mock.Anything, currency.CAD, today).
		Return(fixtures.Table(t, currency.CAD, today, map[string]float64{"USD": 0.8}), nil).Once()

	s, _ := newTestSession(t, exchange.New(p, nil, discardLogger()), prefs)
	_, err := wait(t, s.Start(ctx))
	require.NoError(t, err)
	_, err = s.SetBaseAmount("10")
	require.NoError(t, err)

	view, err := wait(t, s.Swap(ctx))
	require.NoError(t, err)
	assert.Equal(t, "CAD", view.Base)
	assert.Equal(t, "USD", view.Target)
	assert.Equal(t, "8", view.TargetAmount)

	base, _ := prefs.GetInt(ctx, preferences.BaseIndexKey, -1)
	target, _ := prefs.GetInt(ctx, preferences.TargetIndexKey, -1)
	assert.Equal(t, []int{1, 0}, []int{base, target})
}

func TestSession_SupersededLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, nil)

	first := s.Start(ctx)
	<-rates.notified
	second, err := s.SelectBase(ctx, 2)
	require.NoError(t, err)
	<-rates.notified

	rates.reply(1, fixtures.Table(t, currency.GBP, today, map[string]float64{"GBP": 1, "HKD": 9.5}), nil)
	view, err := wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, "GBP", view.Base)

	rates.reply(0, fixtures.Table(t, currency.CAD, today, nil), nil)
	_, err = wait(t, first)
	assert.ErrorIs(t, err, ErrSuperseded)

	view = s.View()
	assert.Equal(t, RatesLoaded, view.State)
	assert.Equal(t, "GBP", view.Base)
	assert.False(t, view.Stale)
}

func TestSession_FailureKeepsPreviousTable(t *testing.T) {
	ctx := context.Background()
	rates := newScriptedRates()
	s, bus := newTestSession(t, rates, nil)

	pending := s.Start(ctx)
	<-rates.notified
	rates.reply(0, fixtures.Table(t, currency.CAD, today, nil), nil)
	_, err := wait(t, pending)
	require.NoError(t, err)
	_, err = s.SetBaseAmount("10")
	require.NoError(t, err)
	before := s.View()

	pending, err = s.SelectBase(ctx, 0)
	require.NoError(t, err)
	<-rates.notified
	assert.Equal(t, RatesLoading, s.View().State)

	fetchErr := &core.ProviderError{Provider: "mock", StatusCode: 500, Err: errors.New("down")}
	rates.reply(1, nil, fetchErr)
	view, err := wait(t, pending)
	require.Error(t, err)
	assert.True(t, core.IsProviderError(err))

	assert.Equal(t, RatesLoaded, view.State)
	assert.True(t, view.Stale)
	assert.NotEmpty(t, view.Error)
	assert.Equal(t, before.TargetAmount, view.TargetAmount)
	assert.Equal(t, today, view.RatesDate)
	assert.Equal(t, []string{EventRatesLoaded, EventRatesFailed}, eventTypes(bus))
}

func TestSession_FailureWithoutTable(t *testing.T) {
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, nil)

	pending := s.Start(context.Background())
	<-rates.notified
	rates.reply(0, nil, &core.MissingRateError{Base: "CAD", Currency: "JPY"})

	view, err := wait(t, pending)
	assert.True(t, core.IsMissingRateError(err))
	assert.Equal(t, Uninitialized, view.State)
	assert.False(t, view.Stale)
	assert.Equal(t, "0", view.TargetAmount)
}

func TestSession_DateEditsReload(t *testing.T) {
	ctx := context.Background()
	rates := newScriptedRates()
	s, bus := newTestSession(t, rates, nil)

	_, err := s.AdjustDate(ctx, calendar.Day, -1)
	require.NoError(t, err)
	<-rates.notified
	_, err = s.SetDateField(ctx, calendar.Year, "2020")
	require.NoError(t, err)
	<-rates.notified

	assert.Equal(t, []core.CacheKey{
		core.NewCacheKey(currency.CAD, "2024-03-14"),
		core.NewCacheKey(currency.CAD, "2020-03-14"),
	}, rates.requested())
	assert.Equal(t, []string{EventDateChanged, EventDateChanged}, eventTypes(bus))

	_, err = s.AdjustDate(ctx, calendar.Day, 3)
	assert.ErrorIs(t, err, calendar.ErrInvalidDirection)
	_, err = s.SetDateField(ctx, calendar.Month, "May")
	assert.True(t, core.IsParseError(err))
	assert.Len(t, rates.requested(), 2)
}

func TestSession_ConcurrentDateEditsLoadLatestDate(t *testing.T) {
	ctx := context.Background()
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, nil)

	pendings := make(chan *Pending, 2)
	adjust := func() {
		p, err := s.AdjustDate(ctx, calendar.Day, -1)
		assert.NoError(t, err)
		pendings <- p
	}

	// Both edits land on the assembler while the session is busy, so
	// each load runs after the second edit.
	s.mu.Lock()
	go adjust()
	require.Eventually(t, func() bool { return s.date.Date() == "2024-03-14" }, time.Second, time.Millisecond)
	go adjust()
	require.Eventually(t, func() bool { return s.date.Date() == "2024-03-13" }, time.Second, time.Millisecond)
	s.mu.Unlock()

	<-rates.notified
	<-rates.notified
	want := core.NewCacheKey(currency.CAD, "2024-03-13")
	assert.Equal(t, []core.CacheKey{want, want}, rates.requested())

	table := fixtures.Table(t, currency.CAD, "2024-03-13", nil)
	rates.reply(1, table, nil)
	rates.reply(0, table, nil)
	for range 2 {
		_, err := wait(t, <-pendings)
		if err != nil {
			assert.ErrorIs(t, err, ErrSuperseded)
		}
	}

	view := s.View()
	assert.Equal(t, RatesLoaded, view.State)
	assert.Equal(t, "2024-03-13", view.Date)
	assert.Equal(t, "2024-03-13", view.RatesDate)
	assert.False(t, view.Stale)
}

func TestSession_ImpossibleDateIsNotFetched(t *testing.T) {
	ctx := context.Background()
	rates := newScriptedRates()
	s, _ := newTestSession(t, rates, nil)

	_, err := s.SetDateField(ctx, calendar.Month, "2")
	require.NoError(t, err)
	<-rates.notified

	pending, err := s.SetDateField(ctx, calendar.Day, "30")
	require.NoError(t, err)
	view, err := wait(t, pending)
	assert.True(t, core.IsParseError(err))
	assert.Equal(t, "2024-02-30", view.Date)
	assert.NotEmpty(t, view.Error)
	assert.Len(t, rates.requested(), 1)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	p := newPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-p.Done():
		t.Fatal("pending resolved unexpectedly")
	default:
	}
}
