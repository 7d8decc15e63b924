package core

import (
	"errors"
	"fmt"
)

// Common errors for exchange operations
var (
	// ErrInvalidRate indicates that an invalid exchange rate was provided
	ErrInvalidRate = errors.New("invalid exchange rate")

	// ErrInvalidBase indicates a malformed base currency code
	ErrInvalidBase = errors.New("invalid base currency")

	// ErrInvalidDate indicates a date that is not canonical YYYY-MM-DD
	ErrInvalidDate = errors.New("invalid date")
)

// ParseError reports malformed user text or a malformed provider payload.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ProviderError represents an error from a rate provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return "provider " + e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MissingRateError reports an enumerated currency absent from a fetched table.
type MissingRateError struct {
	Base     string
	Currency string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("rate table for %s has no rate for %s", e.Base, e.Currency)
}

// IsProviderError checks if an error is a ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsMissingRateError checks if an error is a MissingRateError
func IsMissingRateError(err error) bool {
	var me *MissingRateError
	return errors.As(err, &me)
}
