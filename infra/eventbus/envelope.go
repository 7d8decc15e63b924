package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/amirasaad/fxdate/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(event eventbus.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	envBytes, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return envBytes, nil
}

func decode(raw []byte, factories map[string]eventbus.Factory) (eventbus.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	constructor, ok := factories[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return evt, nil
}

// dispatch runs every handler, recovering panics. It reports whether all
// handlers succeeded.
func dispatch(
	ctx context.Context,
	logger *slog.Logger,
	event eventbus.Event,
	handlers []eventbus.HandlerFunc,
) bool {
	ok := true
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered in event handler", "type", event.Type(), "panic", r)
					ok = false
				}
			}()
			if err := handler(ctx, event); err != nil {
				logger.Error("failed to process event", "type", event.Type(), "error", err)
				ok = false
			}
		}()
	}
	return ok
}
