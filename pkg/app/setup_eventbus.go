// Package app assembles the services and registers the event handlers.
package app

import (
	"github.com/amirasaad/fxdate/infra/metrics"
	handlercommon "github.com/amirasaad/fxdate/pkg/handler/common"
	"github.com/amirasaad/fxdate/pkg/handler/conversion"
	conversionsvc "github.com/amirasaad/fxdate/pkg/service/conversion"
)

// setupEventBus registers all event handlers with the provided event Bus.
func (a *App) setupEventBus(m *metrics.Sessions) {
	bus := a.Deps.EventBus
	logger := a.Deps.Logger

	// Stream and Kafka buses deliver at least once.
	tracker := handlercommon.NewIdempotencyTracker()

	bus.Register(
		conversionsvc.EventRatesLoaded,
		handlercommon.WithIdempotency(
			conversion.HandleRatesLoaded(m, logger),
			tracker,
			conversionsvc.EventID,
			"HandleRatesLoaded",
			logger,
		),
	)
	bus.Register(
		conversionsvc.EventRatesFailed,
		handlercommon.WithIdempotency(
			conversion.HandleRatesFailed(m, logger),
			tracker,
			conversionsvc.EventID,
			"HandleRatesFailed",
			logger,
		),
	)
	bus.Register(
		conversionsvc.EventDateChanged,
		handlercommon.WithIdempotency(
			conversion.HandleDateChanged(m, logger),
			tracker,
			conversionsvc.EventID,
			"HandleDateChanged",
			logger,
		),
	)
}
