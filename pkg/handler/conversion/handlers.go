// Package conversion handles events published by conversion sessions.
package conversion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/fxdate/infra/metrics"
	"github.com/amirasaad/fxdate/pkg/eventbus"
	conversionsvc "github.com/amirasaad/fxdate/pkg/service/conversion"
)

// HandleRatesLoaded records sessions installing a new rate table.
func HandleRatesLoaded(m *metrics.Sessions, logger *slog.Logger) eventbus.HandlerFunc {
	return func(ctx context.Context, e eventbus.Event) error {
		log := logger.With(
			"handler", "conversion.HandleRatesLoaded",
			"event_type", e.Type(),
		)
		ev, ok := e.(*conversionsvc.RatesLoadedEvent)
		if !ok {
			log.Error("❌ [ERROR] unexpected event", "event_type", fmt.Sprintf("%T", e))
			return fmt.Errorf("unexpected event type %T", e)
		}
		m.Event(e.Type())
		log.Info("✅ [SUCCESS] session rates loaded",
			"session_id", ev.SessionID,
			"base", ev.Base,
			"date", ev.Date,
			"as_of", ev.AsOf,
		)
		return nil
	}
}

// HandleRatesFailed records failed loads per base currency.
func HandleRatesFailed(m *metrics.Sessions, logger *slog.Logger) eventbus.HandlerFunc {
	return func(ctx context.Context, e eventbus.Event) error {
		log := logger.With(
			"handler", "conversion.HandleRatesFailed",
			"event_type", e.Type(),
		)
		ev, ok := e.(*conversionsvc.RatesFailedEvent)
		if !ok {
			log.Error("❌ [ERROR] unexpected event", "event_type", fmt.Sprintf("%T", e))
			return fmt.Errorf("unexpected event type %T", e)
		}
		m.Event(e.Type())
		m.LoadFailed(ev.Base)
		log.Warn("⚠️ [FAILED] session rate load failed",
			"session_id", ev.SessionID,
			"base", ev.Base,
			"date", ev.Date,
			"error", ev.Error,
		)
		return nil
	}
}

// HandleDateChanged records date edits.
func HandleDateChanged(m *metrics.Sessions, logger *slog.Logger) eventbus.HandlerFunc {
	return func(ctx context.Context, e eventbus.Event) error {
		ev, ok := e.(*conversionsvc.DateChangedEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T", e)
		}
		m.Event(e.Type())
		logger.Debug("session date changed",
			"handler", "conversion.HandleDateChanged",
			"session_id", ev.SessionID,
			"date", ev.Date,
		)
		return nil
	}
}
