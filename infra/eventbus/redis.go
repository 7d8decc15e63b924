package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/fxdate/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// RedisEventBus publishes events to a Redis stream and consumes them
// through a consumer group.
type RedisEventBus struct {
	client    *redis.Client
	stream    string
	group     string
	factories map[string]eventbus.Factory
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]eventbus.HandlerFunc
	start    sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithRedis creates the stream and consumer group if needed.
func NewWithRedis(
	client *redis.Client,
	stream, group string,
	factories map[string]eventbus.Factory,
	logger *slog.Logger,
) (*RedisEventBus, error) {
	if client == nil || stream == "" || group == "" {
		return nil, fmt.Errorf("redis event bus: client, stream, and group are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("redis event bus: create group: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &RedisEventBus{
		client:    client,
		stream:    stream,
		group:     group,
		factories: factories,
		handlers:  make(map[string][]eventbus.HandlerFunc),
		logger:    logger.With("bus", "redis", "stream", stream),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Emit appends the event to the stream.
func (b *RedisEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	envBytes, err := encode(event)
	if err != nil {
		return fmt.Errorf("redis event bus: %w", err)
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{"event": string(envBytes)},
	}).Err()
	if err != nil {
		b.logger.Error("failed to emit event", "type", event.Type(), "error", err)
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	return nil
}

// Register adds a handler for eventType. The first registration starts the
// bus consumer, which dispatches every message to the handlers of its type.
func (b *RedisEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()

	b.start.Do(func() {
		consumer := fmt.Sprintf("consumer-%d", time.Now().UnixNano())
		b.logger.Info("starting consumer", "group", b.group, "consumer", consumer)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.consume(consumer)
		}()
	})
}

func (b *RedisEventBus) consume(consumer string) {
	for b.ctx.Err() == nil {
		res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || b.ctx.Err() != nil {
				continue
			}
			b.logger.Error("error reading from stream", "consumer", consumer, "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				b.handle(msg)
				if err := b.client.XAck(b.ctx, b.stream, b.group, msg.ID).Err(); err != nil {
					b.logger.Error("failed to acknowledge message", "msg_id", msg.ID, "error", err)
				}
			}
		}
	}
}

func (b *RedisEventBus) handle(msg redis.XMessage) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return
	}
	evt, err := decode([]byte(raw), b.factories)
	if err != nil {
		b.logger.Error("failed to decode event", "msg_id", msg.ID, "error", err)
		b.pushToDLQ(msg.Values)
		return
	}

	b.mu.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[evt.Type()]...)
	b.mu.RUnlock()

	if !dispatch(b.ctx, b.logger, evt, handlers) {
		b.pushToDLQ(msg.Values)
	}
}

func (b *RedisEventBus) pushToDLQ(values map[string]any) {
	dlqStream := b.stream + "-DLQ"
	if err := b.client.XAdd(b.ctx, &redis.XAddArgs{Stream: dlqStream, Values: values}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "stream", dlqStream, "error", err)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlqStream)
}

// Close stops all consumers. The client is owned by the caller.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
