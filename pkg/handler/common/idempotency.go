// Package common holds middleware shared by event handlers.
package common

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/fxdate/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

// KeyExtractor extracts an idempotency key from an event
type KeyExtractor func(eventbus.Event) string

// IdempotencyTracker tracks processed events by key
type IdempotencyTracker struct {
	processed sync.Map
	inflight  singleflight.Group
}

// NewIdempotencyTracker creates a new idempotency tracker
func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{}
}

// Store marks a key as processed
func (t *IdempotencyTracker) Store(key string) {
	t.processed.Store(key, struct{}{})
}

// Seen reports whether key has been processed.
func (t *IdempotencyTracker) Seen(key string) bool {
	_, ok := t.processed.Load(key)
	return ok
}

// Delete removes a key from the tracker
func (t *IdempotencyTracker) Delete(key string) {
	t.processed.Delete(key)
}

// WithIdempotency wraps a handler so each key is handled successfully at
// most once. Redelivered events with a processed key are skipped; events
// without a key always run.
func WithIdempotency(
	handler eventbus.HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e eventbus.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}

		log := logger.With(
			"handler", handlerName,
			"event_type", e.Type(),
			"idempotency_key", key,
		)

		if tracker.Seen(key) {
			log.Debug("Skipping already processed event")
			return nil
		}

		// Concurrent deliveries of one key share a single attempt and its
		// result.
		_, err, _ := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.Store(key)
			return nil, nil
		})
		return err
	}
}
