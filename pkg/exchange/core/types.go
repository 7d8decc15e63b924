package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amirasaad/fxdate/pkg/currency"
)

const (
	// DateLayout is the canonical date layout used for display and cache keys.
	DateLayout = "2006-01-02"
	// Latest is the date component of keys for undated requests.
	Latest = "latest"
)

// RateTable is an immutable snapshot of rates from one base currency to every
// enumerated currency, as of a date.
type RateTable struct {
	base  currency.Code
	date  string
	rates map[currency.Code]float64
}

// NewRateTable validates raw provider rates and builds a table. Every
// enumerated currency must carry a positive finite rate. The base currency's
// own rate is implied as 1 when the payload leaves it out.
func NewRateTable(base currency.Code, date string, raw map[string]float64) (*RateTable, error) {
	if !currency.IsWellFormed(base) {
		return nil, &ParseError{Field: "base", Input: string(base), Err: ErrInvalidBase}
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, &ParseError{Field: "date", Input: date, Err: ErrInvalidDate}
	}

	rates := make(map[currency.Code]float64, currency.Count())
	for _, code := range currency.All() {
		v, ok := raw[string(code)]
		if !ok {
			if code == base {
				v = 1
			} else {
				return nil, &MissingRateError{Base: string(base), Currency: string(code)}
			}
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParseError{
				Field: "rates." + string(code),
				Input: fmt.Sprintf("%v", v),
				Err:   ErrInvalidRate,
			}
		}
		rates[code] = v
	}

	return &RateTable{base: base, date: date, rates: rates}, nil
}

// Base returns the currency the rates are relative to.
func (t *RateTable) Base() currency.Code { return t.base }

// Date returns the as-of date reported by the provider.
func (t *RateTable) Date() string { return t.date }

// Rate returns units of code per one unit of the base currency.
func (t *RateTable) Rate(code currency.Code) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.rates[code]
	return v, ok
}

// RateAt returns the rate for the currency at selection index i.
func (t *RateTable) RateAt(i int) (float64, bool) {
	code, err := currency.ByIndex(i)
	if err != nil {
		return 0, false
	}
	return t.Rate(code)
}

// Rates returns a copy of the rates keyed by code string.
func (t *RateTable) Rates() map[string]float64 {
	out := make(map[string]float64, len(t.rates))
	for code, v := range t.rates {
		out[string(code)] = v
	}
	return out
}

type rateTableJSON struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// MarshalJSON encodes the table in the provider wire shape.
func (t *RateTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(rateTableJSON{Base: string(t.base), Date: t.date, Rates: t.Rates()})
}

// UnmarshalJSON decodes and re-validates a table.
func (t *RateTable) UnmarshalJSON(data []byte) error {
	var w rateTableJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return &ParseError{Field: "rate table", Err: err}
	}
	if w.Rates == nil {
		return &ParseError{Field: "rates", Err: errors.New("missing rates object")}
	}
	parsed, err := NewRateTable(currency.Code(w.Base), w.Date, w.Rates)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// CacheKey identifies a rate table by base currency and canonical date.
type CacheKey struct {
	Base currency.Code
	Date string
}

// NewCacheKey builds a key. An empty date means the latest table.
func NewCacheKey(base currency.Code, date string) CacheKey {
	if date == "" {
		date = Latest
	}
	return CacheKey{Base: base, Date: date}
}

// String returns the base code followed by the canonical date.
func (k CacheKey) String() string {
	return string(k.Base) + k.Date
}

// RatesResult is delivered by asynchronous rate requests.
type RatesResult struct {
	Key   CacheKey
	Table *RateTable
	Err   error
}
