// Package conversion holds the per-user conversion state: selected
// currencies, amounts and date, and the rate table they are converted with.
package conversion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/eventbus"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSuperseded is returned by Pending.Wait when a newer selection
	// replaced the load before it finished.
	ErrSuperseded = errors.New("rate load superseded by a newer selection")
	// ErrNegativeAmount rejects amounts below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// RateSource delivers rate tables asynchronously.
type RateSource interface {
	RequestRates(ctx context.Context, base currency.Code, date string) <-chan core.RatesResult
}

// Option configures a Session.
type Option func(*Session)

// WithBus publishes session events on bus.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithClock sets the source of "today" for the date fields.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type side int

const (
	baseSide side = iota
	targetSide
)

// Session is one conversion form. All methods are safe for concurrent use.
type Session struct {
	id     string
	rates  RateSource
	prefs  preferences.Store
	bus    eventbus.Bus
	logger *slog.Logger
	now    func() time.Time
	date   *calendar.Assembler

	mu           sync.Mutex
	state        State
	baseIndex    int
	targetIndex  int
	baseAmount   decimal.Decimal
	targetAmount decimal.Decimal
	edited       side
	table        *core.RateTable
	lastErr      error
	generation   uint64
	cancelLoad   context.CancelFunc
}

// NewSession creates a session in the Uninitialized state. Call Start to
// load the stored selection and the first rate table.
func NewSession(id string, rates RateSource, prefs preferences.Store, opts ...Option) *Session {
	s := &Session{
		id:          id,
		rates:       rates,
		prefs:       prefs,
		bus:         eventbus.Nop{},
		logger:      slog.Default(),
		now:         time.Now,
		baseIndex:   preferences.DefaultBaseIndex,
		targetIndex: preferences.DefaultTargetIndex,
		baseAmount:  decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prefs == nil {
		s.prefs = preferences.NewMemory()
	}
	s.logger = s.logger.With("session", id)
	s.date = calendar.New(calendar.WithClock(s.now))
	s.date.Subscribe(s.dateChanged)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start restores the stored currency selection and loads rates for it.
func (s *Session) Start(ctx context.Context) *Pending {
	base := s.storedIndex(ctx, preferences.BaseIndexKey, preferences.DefaultBaseIndex)
	target := s.storedIndex(ctx, preferences.TargetIndexKey, preferences.DefaultTargetIndex)

	s.mu.Lock()
	s.baseIndex = base
	s.targetIndex = target
	s.mu.Unlock()

	return s.load(ctx)
}

// View returns the current display state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SelectBase changes the base currency and reloads rates for it.
func (s *Session) SelectBase(ctx context.Context, index int) (*Pending, error) {
	if _, err := currency.ByIndex(index); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.baseIndex = index
	s.mu.Unlock()

	s.persist(ctx, preferences.BaseIndexKey, index)
	return s.load(ctx), nil
}

// SelectTarget changes the target currency and converts the base amount
// with the loaded table. No fetch is needed.
func (s *Session) SelectTarget(ctx context.Context, index int) (View, error) {
	if _, err := currency.ByIndex(index); err != nil {
		return View{}, err
	}
	s.mu.Lock()
	s.targetIndex = index
	s.edited = baseSide
	s.recomputeLocked()
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, preferences.TargetIndexKey, index)
	return view, nil
}

// SetBaseAmount parses text as the base amount and derives the target.
// Invalid text is rejected and the previous amounts are kept.
func (s *Session) SetBaseAmount(text string) (View, error) {
	amount, err := parseAmount("base_amount", text)
	if err != nil {
		return s.View(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseAmount = amount
	s.edited = baseSide
	s.recomputeLocked()
	return s.viewLocked(), nil
}

// SetTargetAmount parses text as the target amount and back-derives the
// base amount from the same table.
func (s *Session) SetTargetAmount(text string) (View, error) {
	amount, err := parseAmount("target_amount", text)
	if err != nil {
		return s.View(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetAmount = amount
	s.edited = targetSide
	s.recomputeLocked()
	return s.viewLocked(), nil
}

// Swap exchanges the base and target currencies and reloads rates for the
// new base.
func (s *Session) Swap(ctx context.Context) *Pending {
	s.mu.Lock()
	s.baseIndex, s.targetIndex = s.targetIndex, s.baseIndex
	base, target := s.baseIndex, s.targetIndex
	s.edited = baseSide
	s.mu.Unlock()

	s.persist(ctx, preferences.BaseIndexKey, base)
	s.persist(ctx, preferences.TargetIndexKey, target)
	return s.load(ctx)
}

// AdjustDate moves one date field by direction (-1 or +1) and reloads.
func (s *Session) AdjustDate(ctx context.Context, field calendar.Field, direction int) (*Pending, error) {
	if err := s.date.Adjust(field, direction); err != nil {
		return nil, err
	}
	return s.load(ctx), nil
}

// SetDateField applies free text to one date field and reloads.
func (s *Session) SetDateField(ctx context.Context, field calendar.Field, text string) (*Pending, error) {
	if err := s.date.SetInput(field, text); err != nil {
		return nil, err
	}
	return s.load(ctx), nil
}

// Close cancels any load in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *Session) load(ctx context.Context) *Pending {
	s.mu.Lock()
	date := s.date.Date()
	_, dateErr := calendar.ParseCanonical(date)
	s.generation++
	gen := s.generation
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	base, _ := currency.ByIndex(s.baseIndex)

	if dateErr != nil {
		s.lastErr = dateErr
		s.state = s.settledState()
		view := s.viewLocked()
		s.mu.Unlock()
		s.logger.Warn("Refusing to load rates for impossible date", "date", date)
		return resolved(view, dateErr)
	}

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelLoad = cancel
	s.state = RatesLoading
	s.mu.Unlock()

	pending := newPending()
	ch := s.rates.RequestRates(loadCtx, base, date)
	go func() {
		defer cancel()
		var res core.RatesResult
		select {
		case r, ok := <-ch:
			if ok {
				res = r
			} else {
				res.Err = ErrSuperseded
			}
		case <-loadCtx.Done():
			res.Err = loadCtx.Err()
		}
		view, err := s.complete(gen, base, date, res)
		pending.resolve(view, err)
	}()
	return pending
}

func (s *Session) complete(gen uint64, base currency.Code, date string, res core.RatesResult) (View, error) {
	s.mu.Lock()
	if gen != s.generation {
		view := s.viewLocked()
		s.mu.Unlock()
		s.logger.Debug("Discarding superseded rate load", "base", string(base), "date", date)
		return view, ErrSuperseded
	}
	s.cancelLoad = nil

	var event eventbus.Event
	if res.Err != nil {
		s.lastErr = res.Err
		s.state = s.settledState()
		event = &RatesFailedEvent{ID: uuid.NewString(), SessionID: s.id, Base: string(base), Date: date, Error: res.Err.Error()}
	} else {
		s.table = res.Table
		s.lastErr = nil
		s.state = RatesLoaded
		s.recomputeLocked()
		event = &RatesLoadedEvent{ID: uuid.NewString(), SessionID: s.id, Base: string(base), Date: date, AsOf: res.Table.Date()}
	}
	view := s.viewLocked()
	s.mu.Unlock()

	if res.Err != nil {
		s.logger.Warn("Failed to load rates", "base", string(base), "date", date, "error", res.Err)
	}
	s.emit(event)
	return view, res.Err
}

// settledState is the state after a load ends without a new table.
func (s *Session) settledState() State {
	if s.table != nil {
		return RatesLoaded
	}
	return Uninitialized
}

// usableTable returns the loaded table when it is relative to the selected
// base currency.
func (s *Session) usableTable() *core.RateTable {
	base, _ := currency.ByIndex(s.baseIndex)
	if s.table == nil || s.table.Base() != base {
		return nil
	}
	return s.table
}

// recomputeLocked derives the amount the user did not edit. Without a
// usable table the last derived amount is kept.
func (s *Session) recomputeLocked() {
	table := s.usableTable()
	if table == nil {
		return
	}
	switch s.edited {
	case targetSide:
		v := exchange.ConvertInverse(s.targetAmount.InexactFloat64(), table, s.targetIndex, s.baseIndex)
		s.baseAmount = decimal.NewFromFloat(v)
	default:
		v := exchange.Convert(s.baseAmount.InexactFloat64(), table, s.targetIndex)
		s.targetAmount = decimal.NewFromFloat(v)
	}
}

func (s *Session) viewLocked() View {
	base, _ := currency.ByIndex(s.baseIndex)
	target, _ := currency.ByIndex(s.targetIndex)
	day, month, year := s.date.Fields()

	v := View{
		ID:           s.id,
		State:        s.state,
		BaseIndex:    s.baseIndex,
		TargetIndex:  s.targetIndex,
		Base:         string(base),
		Target:       string(target),
		BaseAmount:   display(s.baseAmount),
		TargetAmount: display(s.targetAmount),
		Date:         s.date.Date(),
		Day:          day,
		Month:        month,
		Year:         year,
	}
	if s.table != nil {
		v.RatesDate = s.table.Date()
	}
	table := s.usableTable()
	if rate, ok := table.RateAt(s.targetIndex); ok {
		v.Rate = display(decimal.NewFromFloat(rate))
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	v.Stale = s.table != nil && (table == nil || s.lastErr != nil)
	return v
}

func (s *Session) dateChanged(date string) {
	s.emit(&DateChangedEvent{ID: uuid.NewString(), SessionID: s.id, Date: date})
}

func (s *Session) emit(event eventbus.Event) {
	if err := s.bus.Emit(context.Background(), event); err != nil {
		s.logger.Warn("Failed to publish event", "type", event.Type(), "error", err)
	}
}

func (s *Session) storedIndex(ctx context.Context, key string, def int) int {
	v, err := s.prefs.GetInt(ctx, key, def)
	if err != nil {
		s.logger.Warn("Failed to read preference", "key", key, "error", err)
		return def
	}
	if _, err := currency.ByIndex(v); err != nil {
		s.logger.Warn("Ignoring out of range preference", "key", key, "value", v)
		return def
	}
	return v
}

func (s *Session) persist(ctx context.Context, key string, value int) {
	if err := s.prefs.SetInt(ctx, key, value); err != nil {
		s.logger.Warn("Failed to store preference", "key", key, "value", value, "error", err)
	}
}

func parseAmount(field, text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, &core.ParseError{Field: field, Input: text, Err: err}
	}
	if d.IsNegative() {
		return decimal.Decimal{}, &core.ParseError{Field: field, Input: text, Err: ErrNegativeAmount}
	}
	return d, nil
}
