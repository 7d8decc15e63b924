package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/amirasaad/fxdate/infra/metrics"
	"github.com/amirasaad/fxdate/infra/scheduler"
	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/amirasaad/fxdate/pkg/eventbus"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
	"github.com/amirasaad/fxdate/pkg/service/conversion"
	exchangesvc "github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps contains the infrastructure the services are built from
type Deps struct {
	Provider    exchange.Provider
	Cache       exchange.Cache
	Preferences preferences.Store
	EventBus    eventbus.Bus
	Registry    *prometheus.Registry
	Logger      *slog.Logger
	// Closers are released in reverse order by App.Close.
	Closers []io.Closer
}

type App struct {
	Deps     *Deps
	Config   *config.App
	Exchange *exchangesvc.Service
	Sessions *conversion.Manager
	Warmer   *scheduler.Warmer
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.EventBus == nil {
		deps.EventBus = eventbus.Nop{}
	}
	if deps.Preferences == nil {
		deps.Preferences = preferences.NewMemory()
	}

	app := &App{
		Deps:   deps,
		Config: cfg,
	}

	opts := []exchangesvc.Option{exchangesvc.WithMetrics(metrics.NewExchange(deps.Registry))}
	if cfg != nil && cfg.ExchangeRateProvider != nil {
		opts = append(opts, exchangesvc.WithFetchTimeout(cfg.ExchangeRateProvider.FetchTimeout))
	}
	app.Exchange = exchangesvc.New(deps.Provider, deps.Cache, deps.Logger, opts...)
	var limits conversion.Limits
	if cfg != nil && cfg.Sessions != nil {
		limits = conversion.Limits{MaxSessions: cfg.Sessions.MaxSessions, IdleTimeout: cfg.Sessions.IdleTimeout}
	}
	app.Sessions = conversion.NewManager(
		app.Exchange,
		deps.Preferences,
		limits,
		conversion.WithBus(deps.EventBus),
		conversion.WithLogger(deps.Logger),
	)
	app.setupEventBus(metrics.NewSessions(deps.Registry))

	if cfg != nil && cfg.Warmer != nil && cfg.Warmer.Enabled {
		w, err := scheduler.NewWarmer(app.Exchange, deps.Preferences, cfg.Warmer.Bases, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate warmer: %w", err)
		}
		if err := w.Register(cfg.Warmer.Schedule); err != nil {
			return nil, err
		}
		app.Warmer = w
	}
	return app, nil
}

// Start launches background work: an initial warm run and the schedule.
func (a *App) Start(ctx context.Context) {
	if a.Warmer == nil {
		return
	}
	go a.Warmer.RunNow(ctx)
	a.Warmer.Start()
}

// Close stops background work and releases infrastructure.
func (a *App) Close() error {
	if a.Warmer != nil {
		a.Warmer.Stop()
	}
	var errs []error
	for i := len(a.Deps.Closers) - 1; i >= 0; i-- {
		if err := a.Deps.Closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
