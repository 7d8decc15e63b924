// Package scheduler refreshes the latest rate tables on a cron schedule so
// sessions opened on today's date find them already cached.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/robfig/cron/v3"
)

// Refresher replaces the cached table for a key with a fresh fetch.
type Refresher interface {
	RefreshRates(ctx context.Context, base currency.Code, date string) (*core.RateTable, error)
}

// Warmer refreshes "latest" tables for the configured bases and the
// currently preferred base.
type Warmer struct {
	cron   *cron.Cron
	rates  Refresher
	prefs  preferences.Store
	bases  []currency.Code
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWarmer validates bases. prefs may be nil, in which case only the
// configured bases are warmed.
func NewWarmer(
	rates Refresher,
	prefs preferences.Store,
	bases []string,
	logger *slog.Logger,
) (*Warmer, error) {
	if rates == nil {
		return nil, fmt.Errorf("warmer: rate refresher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	codes := make([]currency.Code, 0, len(bases))
	for _, b := range bases {
		code, err := currency.Parse(b)
		if err != nil {
			return nil, fmt.Errorf("warmer: base %q: %w", b, err)
		}
		codes = append(codes, code)
	}
	return &Warmer{
		cron:   cron.New(),
		rates:  rates,
		prefs:  prefs,
		bases:  codes,
		logger: logger.With("component", "warmer"),
	}, nil
}

// Register schedules a refresh. schedule accepts standard five field
// expressions and descriptors such as "@daily" or "@every 6h".
func (w *Warmer) Register(schedule string) error {
	if _, err := w.cron.AddFunc(schedule, func() { w.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("register warm task %q: %w", schedule, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (w *Warmer) Start() {
	w.cron.Start()
	w.logger.Info("Rate warmer started", "entries", len(w.cron.Entries()))
}

// Stop stops scheduling and waits for a running refresh to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Rate warmer stopped")
}

// RunNow refreshes every target once and returns how many succeeded.
// Overlapping runs are skipped.
func (w *Warmer) RunNow(ctx context.Context) int {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Debug("Skipping warm run; previous run still active")
		return 0
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ok := 0
	for _, base := range w.targets(ctx) {
		table, err := w.rates.RefreshRates(ctx, base, "")
		if err != nil {
			w.logger.Warn("Failed to warm rates", "base", string(base), "error", err)
			continue
		}
		ok++
		w.logger.Info("Warmed latest rates", "base", string(base), "as_of", table.Date())
	}
	return ok
}

func (w *Warmer) targets(ctx context.Context) []currency.Code {
	out := make([]currency.Code, 0, len(w.bases)+1)
	seen := make(map[currency.Code]bool, len(w.bases)+1)
	add := func(c currency.Code) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, b := range w.bases {
		add(b)
	}
	if w.prefs == nil {
		return out
	}
	i, err := w.prefs.GetInt(ctx, preferences.BaseIndexKey, preferences.DefaultBaseIndex)
	if err != nil {
		w.logger.Warn("Failed to read preferred base", "error", err)
		return out
	}
	if code, err := currency.ByIndex(i); err == nil {
		add(code)
	}
	return out
}
