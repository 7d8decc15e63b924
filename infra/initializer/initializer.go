// Package initializer builds the process infrastructure from configuration.
package initializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	infracache "github.com/amirasaad/fxdate/infra/cache"
	infraeventbus "github.com/amirasaad/fxdate/infra/eventbus"
	infraprefs "github.com/amirasaad/fxdate/infra/preferences"
	"github.com/amirasaad/fxdate/infra/provider/exchangeratesapi"
	"github.com/amirasaad/fxdate/infra/provider/mockexchangerate"
	"github.com/amirasaad/fxdate/pkg/app"
	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/amirasaad/fxdate/pkg/eventbus"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"github.com/amirasaad/fxdate/pkg/service/conversion"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// InitializeDependencies initializes all the application dependencies.
// On error, anything opened so far is closed.
func InitializeDependencies(cfg *config.App) (deps *app.Deps, err error) {
	logger := SetupLogger(cfg.Log)
	deps = &app.Deps{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	defer func() {
		if err != nil {
			closeAll(deps.Closers, logger)
			deps = nil
		}
	}()

	shared := &redisConn{url: cfg.Redis.URL, closers: &deps.Closers}

	deps.Provider, err = initProvider(cfg.ExchangeRateProvider, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize rate provider: %w", err)
	}

	deps.Cache, err = initCache(cfg.ExchangeRateCache, shared, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize rate cache: %w", err)
	}

	var prefsCloser io.Closer
	deps.Preferences, prefsCloser, err = initPreferences(cfg.Preferences, cfg.Env)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize preferences store: %w", err)
	}
	if prefsCloser != nil {
		deps.Closers = append(deps.Closers, prefsCloser)
	}

	var busCloser io.Closer
	deps.EventBus, busCloser, err = initEventBus(cfg.EventBus, shared, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	if busCloser != nil {
		deps.Closers = append(deps.Closers, busCloser)
	}

	logger.Info("Dependencies initialized",
		"provider", deps.Provider.Name(),
		"cache", cfg.ExchangeRateCache.Driver,
		"preferences", cfg.Preferences.Driver,
		"eventbus", cfg.EventBus.Driver,
	)
	return deps, nil
}

// redisConn lazily opens one client shared by the cache and the event bus.
// The client is registered as a closer when opened, ahead of the bus that
// reads from it, so it is closed after the bus.
type redisConn struct {
	url     string
	client  *redis.Client
	closers *[]io.Closer
}

func (r *redisConn) get() (*redis.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	if r.url == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := infracache.NewRedisClient(ctx, r.url)
	if err != nil {
		return nil, err
	}
	r.client = client
	*r.closers = append(*r.closers, client)
	return client, nil
}

func initProvider(cfg *config.ExchangeRateProvider, logger *slog.Logger) (exchange.Provider, error) {
	switch cfg.Driver {
	case "mock":
		logger.Warn("Using the built-in mock rate provider")
		return mockexchangerate.New()
	case "http", "":
		if cfg.APIKey == "" {
			logger.Warn("EXCHANGE_RATE_PROVIDER_API_KEY is not set; requests may be rejected")
		}
		return exchangeratesapi.New(exchangeratesapi.Config{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.HTTPTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider driver %q", cfg.Driver)
	}
}

func initCache(cfg *config.ExchangeRateCache, shared *redisConn, logger *slog.Logger) (exchange.Cache, error) {
	switch cfg.Driver {
	case "redis":
		client, err := shared.get()
		if err != nil {
			return nil, err
		}
		return infracache.NewRedisRateCache(client, cfg.Prefix, cfg.TTL, logger), nil
	case "memory", "":
		return exchange.NewCache(exchange.CacheOptions{TTL: cfg.TTL, MaxEntries: cfg.MaxEntries}), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func initPreferences(cfg *config.Preferences, appEnv string) (preferences.Store, io.Closer, error) {
	switch cfg.Driver {
	case "badger":
		s, err := infraprefs.OpenBadger(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := infraprefs.OpenSQLite(cfg.Path, appEnv)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := infraprefs.OpenPostgres(cfg.DSN, appEnv)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "memory", "":
		return preferences.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown preferences driver %q", cfg.Driver)
	}
}

// initEventBus falls back to the in-process bus when a transport cannot be
// reached, since session events are informational.
func initEventBus(cfg *config.EventBus, shared *redisConn, logger *slog.Logger) (eventbus.Bus, io.Closer, error) {
	factories := conversion.EventFactories()
	switch cfg.Driver {
	case "redis":
		client, err := shared.get()
		if err != nil {
			logger.Warn("Redis unavailable; falling back to in-memory event bus", "error", err)
			return infraeventbus.NewWithMemory(logger), nil, nil
		}
		bus, err := infraeventbus.NewWithRedis(client, cfg.Stream, cfg.GroupID, factories, logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable; falling back to in-memory event bus", "error", err)
			return infraeventbus.NewWithMemory(logger), nil, nil
		}
		return bus, bus, nil
	case "kafka":
		if cfg.Brokers == "" {
			return nil, nil, fmt.Errorf("EVENTBUS_BROKERS is required for the kafka driver")
		}
		bus, err := infraeventbus.NewWithKafka(cfg.Brokers, &infraeventbus.KafkaConfig{
			GroupID:     cfg.GroupID,
			TopicPrefix: cfg.TopicPrefix,
		}, factories, logger)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus, nil
	case "memory", "":
		return infraeventbus.NewWithMemory(logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown event bus driver %q", cfg.Driver)
	}
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
}
