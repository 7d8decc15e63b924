// Package calendar assembles a calendar date from independently edited
// day, month and year fields and notifies subscribers of every change.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/fxdate/pkg/exchange/core"
)

// MinYear is the earliest year the rate service publishes.
const MinYear = 1999

// Field names a date component.
type Field string

const (
	Day   Field = "day"
	Month Field = "month"
	Year  Field = "year"
)

var (
	// ErrInvalidDirection is returned for adjustments other than -1 or +1.
	ErrInvalidDirection = errors.New("direction must be -1 or +1")
	// ErrUnknownField is returned for field names other than day, month, year.
	ErrUnknownField = errors.New("unknown date field")
)

// ParseField converts a name into a Field.
func ParseField(name string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(name))); f {
	case Day, Month, Year:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Listener receives the canonical date string after each change.
type Listener func(date string)

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// Assembler owns the day, month and year fields. Each field is clamped to
// its own range independently; day is not checked against the month.
type Assembler struct {
	mu    sync.Mutex
	day   int
	month int
	year  int
	now   func() time.Time

	subMu     sync.Mutex
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

// New creates an assembler initialized to today.
func New(opts ...Option) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	today := a.now()
	a.day = today.Day()
	a.month = int(today.Month())
	a.year = today.Year()
	return a
}

// Subscribe registers fn and returns a function that removes it. Listeners
// run synchronously on the mutating goroutine in subscription order.
func (a *Assembler) Subscribe(fn Listener) (unsubscribe func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.nextID++
	id := a.nextID
	a.listeners = append(a.listeners, subscription{id: id, fn: fn})
	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		for i, s := range a.listeners {
			if s.id == id {
				a.listeners = append(a.listeners[:i:i], a.listeners[i+1:]...)
				return
			}
		}
	}
}

// Date returns the canonical YYYY-MM-DD string.
func (a *Assembler) Date() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.format()
}

// Fields returns the current day, month and year.
func (a *Assembler) Fields() (day, month, year int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.day, a.month, a.year
}

// Time validates the assembled date against the real calendar.
func (a *Assembler) Time() (time.Time, error) {
	return ParseCanonical(a.Date())
}

// ParseCanonical parses a canonical date string, rejecting impossible dates
// such as February 30.
func ParseCanonical(date string) (time.Time, error) {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return time.Time{}, &core.ParseError{Field: "date", Input: date, Err: core.ErrInvalidDate}
	}
	return t, nil
}

// AdjustDay moves the day by direction and clamps it to [1, 31].
func (a *Assembler) AdjustDay(direction int) error { return a.Adjust(Day, direction) }

// AdjustMonth moves the month by direction and clamps it to [1, 12].
func (a *Assembler) AdjustMonth(direction int) error { return a.Adjust(Month, direction) }

// AdjustYear moves the year by direction and clamps it to [MinYear, this year].
func (a *Assembler) AdjustYear(direction int) error { return a.Adjust(Year, direction) }

// SetDayInput applies a free text day edit.
func (a *Assembler) SetDayInput(text string) error { return a.SetInput(Day, text) }

// SetMonthInput applies a free text month edit.
func (a *Assembler) SetMonthInput(text string) error { return a.SetInput(Month, text) }

// SetYearInput applies a free text year edit.
func (a *Assembler) SetYearInput(text string) error { return a.SetInput(Year, text) }

// Adjust moves field by direction, which must be -1 or +1.
func (a *Assembler) Adjust(field Field, direction int) error {
	if direction != -1 && direction != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, direction)
	}

	a.mu.Lock()
	ptr, err := a.fieldPtr(field)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	*ptr = a.clamp(field, *ptr+direction)
	date := a.format()
	a.mu.Unlock()

	a.notify(date)
	return nil
}

// SetInput applies free text to field. Empty text or zero resets the field
// to today's component. Non-numeric text is rejected and the field keeps its
// value. Anything else is clamped like an increment.
func (a *Assembler) SetInput(field Field, text string) error {
	text = strings.TrimSpace(text)

	var value int
	if text != "" {
		n, err := strconv.Atoi(text)
		if err != nil {
			return &core.ParseError{Field: string(field), Input: text, Err: err}
		}
		value = n
	}

	a.mu.Lock()
	ptr, err := a.fieldPtr(field)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if value == 0 {
		value = a.today(field)
	}
	*ptr = a.clamp(field, value)
	date := a.format()
	a.mu.Unlock()

	a.notify(date)
	return nil
}

func (a *Assembler) fieldPtr(field Field) (*int, error) {
	switch field {
	case Day:
		return &a.day, nil
	case Month:
		return &a.month, nil
	case Year:
		return &a.year, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
}

func (a *Assembler) today(field Field) int {
	t := a.now()
	switch field {
	case Day:
		return t.Day()
	case Month:
		return int(t.Month())
	default:
		return t.Year()
	}
}

// clamp is the single validation rule shared by both edit paths.
func (a *Assembler) clamp(field Field, v int) int {
	lo, hi := 1, 31
	switch field {
	case Month:
		hi = 12
	case Year:
		lo, hi = MinYear, a.now().Year()
	}
	return min(max(v, lo), hi)
}

func (a *Assembler) format() string {
	return fmt.Sprintf("%04d-%02d-%02d", a.year, a.month, a.day)
}

func (a *Assembler) notify(date string) {
	a.subMu.Lock()
	listeners := make([]Listener, len(a.listeners))
	for i, s := range a.listeners {
		listeners[i] = s.fn
	}
	a.subMu.Unlock()

	for _, fn := range listeners {
		fn(date)
	}
}
