// Package eventbus defines the publish/subscribe contract used to announce
// conversion activity to other parts of the system.
package eventbus

import "context"

// Event is anything with a stable type name.
type Event interface {
	Type() string
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus delivers emitted events to the handlers registered for their type.
type Bus interface {
	Register(eventType string, handler HandlerFunc)
	Emit(ctx context.Context, event Event) error
}

// Factory creates an empty event of a known type for decoding.
type Factory func() Event

// Nop discards every event.
type Nop struct{}

func (Nop) Register(string, HandlerFunc) {}
func (Nop) Emit(context.Context, Event) error { return nil }

var _ Bus = Nop{}
