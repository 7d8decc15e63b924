package conversion

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of decimals shown for amounts and rates.
const DisplayPlaces = 4

// State is the rate loading state of a session.
type State int

const (
	Uninitialized State = iota
	RatesLoading
	RatesLoaded
)

func (s State) String() string {
	switch s {
	case RatesLoading:
		return "rates_loading"
	case RatesLoaded:
		return "rates_loaded"
	default:
		return "uninitialized"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "uninitialized":
		*s = Uninitialized
	case "rates_loading":
		*s = RatesLoading
	case "rates_loaded":
		*s = RatesLoaded
	default:
		return fmt.Errorf("unknown session state %q", string(text))
	}
	return nil
}

// View is a snapshot of a session for display.
type View struct {
	ID           string `json:"id"`
	State        State  `json:"state"`
	BaseIndex    int    `json:"base_index"`
	TargetIndex  int    `json:"target_index"`
	Base         string `json:"base"`
	Target       string `json:"target"`
	BaseAmount   string `json:"base_amount"`
	TargetAmount string `json:"target_amount"`
	Rate         string `json:"rate,omitempty"`
	Date         string `json:"date"`
	Day          int    `json:"day"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	RatesDate    string `json:"rates_date,omitempty"`
	Stale        bool   `json:"stale"`
	Error        string `json:"error,omitempty"`
}

func display(d decimal.Decimal) string {
	return d.Round(DisplayPlaces).String()
}
