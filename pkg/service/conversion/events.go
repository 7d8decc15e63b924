package conversion

import "github.com/amirasaad/fxdate/pkg/eventbus"

const (
	EventRatesLoaded = "conversion.rates_loaded"
	EventRatesFailed = "conversion.rates_failed"
	EventDateChanged = "conversion.date_changed"
)

// RatesLoadedEvent is emitted when a session installs a new rate table.
type RatesLoadedEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Base      string `json:"base"`
	Date      string `json:"date"`
	AsOf      string `json:"as_of"`
}

func (e *RatesLoadedEvent) Type() string { return EventRatesLoaded }

// RatesFailedEvent is emitted when a load fails. The session keeps its
// previous table.
type RatesFailedEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Base      string `json:"base"`
	Date      string `json:"date"`
	Error     string `json:"error"`
}

func (e *RatesFailedEvent) Type() string { return EventRatesFailed }

// DateChangedEvent is emitted for every edit of the session date.
type DateChangedEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
}

func (e *DateChangedEvent) Type() string { return EventDateChanged }

// EventID returns the unique id of e, or "" for foreign events.
func EventID(e eventbus.Event) string {
	switch ev := e.(type) {
	case *RatesLoadedEvent:
		return ev.ID
	case *RatesFailedEvent:
		return ev.ID
	case *DateChangedEvent:
		return ev.ID
	default:
		return ""
	}
}

// EventFactories lets transport buses decode conversion events.
func EventFactories() map[string]eventbus.Factory {
	return map[string]eventbus.Factory{
		EventRatesLoaded: func() eventbus.Event { return &RatesLoadedEvent{} },
		EventRatesFailed: func() eventbus.Event { return &RatesFailedEvent{} },
		EventDateChanged: func() eventbus.Event { return &DateChangedEvent{} },
	}
}
