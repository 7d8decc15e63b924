package currency

import (
	"errors"
	"fmt"
	"strings"
)

// Code is an ISO 4217 style three letter currency code.
type Code string

// String returns the code as a string.
func (c Code) String() string { return string(c) }

var (
	// ErrUnsupportedCurrency is returned for codes outside the enumerated set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidIndex is returned when a selection index is out of range.
	ErrInvalidIndex = errors.New("currency index out of range")
)

// The enumerated set. Order matters: callers select currencies by index.
const (
	USD Code = "USD"
	CAD Code = "CAD"
	GBP Code = "GBP"
	HKD Code = "HKD"
	HUF Code = "HUF"
	CZK Code = "CZK"
	AUD Code = "AUD"
	RON Code = "RON"
	SEK Code = "SEK"
	IDR Code = "IDR"
	INR Code = "INR"
	BRL Code = "BRL"
	RUB Code = "RUB"
	HRK Code = "HRK"
	JPY Code = "JPY"
	THB Code = "THB"
	CHF Code = "CHF"
	SGD Code = "SGD"
	PLN Code = "PLN"
	BGN Code = "BGN"
	TRY Code = "TRY"
	CNY Code = "CNY"
	NOK Code = "NOK"
	NZD Code = "NZD"
	ZAR Code = "ZAR"
	PHP Code = "PHP"
	MXN Code = "MXN"
	ILS Code = "ILS"
	ISK Code = "ISK"
	KRW Code = "KRW"
	MYR Code = "MYR"
	DKK Code = "DKK"
)

var codes = [...]Code{
	USD, CAD, GBP, HKD,
	HUF, CZK, AUD, RON, SEK,
	IDR, INR, BRL, RUB, HRK,
	JPY, THB, CHF, SGD, PLN,
	BGN, TRY, CNY, NOK, NZD,
	ZAR, PHP, MXN, ILS, ISK,
	KRW, MYR, DKK,
}

var indexByCode = func() map[Code]int {
	m := make(map[Code]int, len(codes))
	for i, c := range codes {
		m[c] = i
	}
	return m
}()

// All returns a copy of the enumerated codes in selection order.
func All() []Code {
	out := make([]Code, len(codes))
	copy(out, codes[:])
	return out
}

// Count returns the number of enumerated codes.
func Count() int { return len(codes) }

// ByIndex returns the code at selection index i.
func ByIndex(i int) (Code, error) {
	if i < 0 || i >= len(codes) {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return codes[i], nil
}

// IndexOf returns the selection index of code.
func IndexOf(code Code) (int, error) {
	i, ok := indexByCode[code]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, string(code))
	}
	return i, nil
}

// IsSupported reports whether code belongs to the enumerated set.
func IsSupported(code Code) bool {
	_, ok := indexByCode[code]
	return ok
}

// Parse normalizes text (trim, upper case) and checks it is supported.
func Parse(text string) (Code, error) {
	code := Code(strings.ToUpper(strings.TrimSpace(text)))
	if !IsSupported(code) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, text)
	}
	return code, nil
}

// IsWellFormed reports whether code looks like a three letter upper case
// code. Provider base currencies are only required to be well formed; the
// rates inside a table always cover the enumerated set.
func IsWellFormed(code Code) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
