package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/fxdate/infra/metrics"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a shared provider fetch once every waiter has
// given up on it.
const DefaultFetchTimeout = 30 * time.Second

// ErrNoProvider is returned when the service has no rate provider.
var ErrNoProvider = errors.New("no exchange rate provider configured")

// Option configures a Service.
type Option func(*Service)

// WithMetrics records cache and fetch counters on m.
func WithMetrics(m *metrics.Exchange) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// Service resolves rate tables through the cache and the provider and
// converts amounts against them.
type Service struct {
	provider     exchange.Provider
	cache        exchange.Cache
	logger       *slog.Logger
	metrics      *metrics.Exchange
	fetchTimeout time.Duration
	group        singleflight.Group
}

// New creates a service. A nil cache is replaced by an unbounded memory
// cache and a nil logger by slog.Default().
func New(
	provider exchange.Provider,
	cache exchange.Cache,
	log *slog.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cache == nil {
		cache = exchange.NewCache(exchange.CacheOptions{})
	}
	s := &Service{
		provider:     provider,
		cache:        cache,
		logger:       log,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the cache backing the service.
func (s *Service) Cache() exchange.Cache { return s.cache }

// EnsureRates returns the table for (base, date), fetching it at most once
// per key. An empty date means the latest table. Failed fetches leave the
// cache untouched.
func (s *Service) EnsureRates(
	ctx context.Context,
	base currency.Code,
	date string,
) (*core.RateTable, error) {
	if !currency.IsWellFormed(base) {
		return nil, &core.ParseError{Field: "base", Input: string(base), Err: core.ErrInvalidBase}
	}
	key := core.NewCacheKey(base, date)
	log := s.logger.With("base", string(base), "date", key.Date)

	if table := s.lookup(ctx, key, log); table != nil {
		s.metrics.CacheHit(string(base))
		return table, nil
	}
	s.metrics.CacheMiss(string(base))

	return s.await(ctx, key, log, func(fctx context.Context) (*core.RateTable, error) {
		if table := s.lookup(fctx, key, log); table != nil {
			return table, nil
		}
		return s.fetch(fctx, key, log)
	})
}

// RefreshRates fetches (base, date) from the provider even when it is
// cached and replaces the cached table on success. Requests already in
// flight for the same key are joined rather than duplicated.
func (s *Service) RefreshRates(
	ctx context.Context,
	base currency.Code,
	date string,
) (*core.RateTable, error) {
	if !currency.IsWellFormed(base) {
		return nil, &core.ParseError{Field: "base", Input: string(base), Err: core.ErrInvalidBase}
	}
	key := core.NewCacheKey(base, date)
	log := s.logger.With("base", string(base), "date", key.Date, "refresh", true)
	return s.await(ctx, key, log, func(fctx context.Context) (*core.RateTable, error) {
		return s.fetch(fctx, key, log)
	})
}

// await runs fn at most once per key and waits for it or for ctx. fn is
// detached from ctx so one caller giving up never fails the others.
func (s *Service) await(
	ctx context.Context,
	key core.CacheKey,
	log *slog.Logger,
	fn func(context.Context) (*core.RateTable, error),
) (*core.RateTable, error) {
	ch := s.group.DoChan(key.String(), func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.Coalesced(string(key.Base))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.RateTable), nil
	case <-ctx.Done():
		log.Debug("Stopped waiting for rates", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// RequestRates runs EnsureRates in the background and delivers exactly one
// result on the returned channel.
func (s *Service) RequestRates(
	ctx context.Context,
	base currency.Code,
	date string,
) <-chan core.RatesResult {
	out := make(chan core.RatesResult, 1)
	key := core.NewCacheKey(base, date)
	go func() {
		defer close(out)
		table, err := s.EnsureRates(ctx, base, date)
		out <- core.RatesResult{Key: key, Table: table, Err: err}
	}()
	return out
}

// Convert converts amount units of the table's base into the currency at
// targetIndex. It returns 0 when the rate is unavailable.
func (s *Service) Convert(amount float64, table *core.RateTable, targetIndex int) float64 {
	return Convert(amount, table, targetIndex)
}

// ConvertInverse derives the base amount for a target amount.
func (s *Service) ConvertInverse(
	targetAmount float64,
	table *core.RateTable,
	targetIndex, baseIndex int,
) float64 {
	return ConvertInverse(targetAmount, table, targetIndex, baseIndex)
}

func (s *Service) lookup(ctx context.Context, key core.CacheKey, log *slog.Logger) *core.RateTable {
	table, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Failed to read rates from cache", "key", key.String(), "error", err)
		return nil
	}
	return table
}

func (s *Service) fetch(ctx context.Context, key core.CacheKey, log *slog.Logger) (*core.RateTable, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	name := s.provider.Name()
	date := key.Date
	if date == core.Latest {
		date = ""
	}

	started := time.Now()
	s.metrics.Fetch(name, string(key.Base))
	table, err := s.provider.Fetch(ctx, key.Base, date)
	s.metrics.ObserveFetch(name, time.Since(started).Seconds())
	if err != nil {
		s.metrics.FetchError(name, errorKind(err))
		log.Warn("Failed to fetch rates from provider", "provider", name, "error", err)
		return nil, fmt.Errorf("fetch rates for %s: %w", key.String(), err)
	}

	if err := s.cache.Put(ctx, key, table); err != nil {
		log.Error("Failed to cache rates", "key", key.String(), "error", err)
	}
	log.Info("Fetched exchange rates", "provider", name, "as_of", table.Date())
	return table, nil
}

func errorKind(err error) string {
	switch {
	case core.IsProviderError(err):
		return "provider"
	case core.IsMissingRateError(err):
		return "missing_rate"
	case core.IsParseError(err):
		return "parse"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
