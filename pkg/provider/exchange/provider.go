package exchange

import (
	"context"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
)

// Provider fetches complete rate tables from a remote source.
type Provider interface {
	// Fetch returns the table for base as of date. An empty date asks for the
	// latest published table.
	Fetch(ctx context.Context, base currency.Code, date string) (*core.RateTable, error)

	// Name returns the provider's name for logging and identification.
	Name() string
}

// Cache stores rate tables by key.
type Cache interface {
	// Get returns the cached table or (nil, nil) when absent.
	Get(ctx context.Context, key core.CacheKey) (*core.RateTable, error)

	// Put inserts or overwrites the table stored under key.
	Put(ctx context.Context, key core.CacheKey, table *core.RateTable) error
}
