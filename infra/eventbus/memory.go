package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/fxdate/pkg/eventbus"
)

// MemoryEventBus dispatches events synchronously in process.
type MemoryEventBus struct {
	handlers  map[string][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	history   int
	published []eventbus.Event
}

// MemoryOption configures a MemoryEventBus.
type MemoryOption func(*MemoryEventBus)

// WithHistory keeps the last limit emitted events for Published. Without
// it nothing is recorded.
func WithHistory(limit int) MemoryOption {
	return func(b *MemoryEventBus) { b.history = limit }
}

// NewWithMemory creates an in-memory event bus.
func NewWithMemory(logger *slog.Logger, opts ...MemoryOption) *MemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &MemoryEventBus{
		handlers: make(map[string][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a handler for eventType.
func (b *MemoryEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit records the event when history is enabled and runs its handlers
// on the caller's goroutine. Handler failures are logged.
func (b *MemoryEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	b.mu.Lock()
	if b.history > 0 {
		if len(b.published) >= b.history {
			b.published = append(b.published[:0], b.published[len(b.published)-b.history+1:]...)
		}
		b.published = append(b.published, event)
	}
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[event.Type()]...)
	b.mu.Unlock()

	dispatch(ctx, b.logger, event, handlers)
	return nil
}

// Published returns a copy of the recorded events, oldest first.
func (b *MemoryEventBus) Published() []eventbus.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]eventbus.Event(nil), b.published...)
}

// ClearPublished forgets recorded events.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)
