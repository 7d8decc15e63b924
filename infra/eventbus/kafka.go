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
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaConfig holds configuration for the Kafka event bus.
type KafkaConfig struct {
	GroupID      string
	TopicPrefix  string
	SASLUsername string
	SASLPassword string
}

// kafkaBatchTimeout bounds how long Emit waits for a batch to fill.
const kafkaBatchTimeout = 10 * time.Millisecond

// DefaultKafkaConfig returns the default group and topic prefix.
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		GroupID:     "fxdate",
		TopicPrefix: "fxdate.events",
	}
}

// KafkaEventBus publishes each event type to its own topic.
type KafkaEventBus struct {
	brokers   []string
	writer    *kafka.Writer
	dialer    *kafka.Dialer
	config    *KafkaConfig
	factories map[string]eventbus.Factory
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]eventbus.HandlerFunc
	readers  map[string]*kafka.Reader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithKafka creates a Kafka-backed bus. brokers is a comma separated
// list such as "localhost:9092,localhost:9093".
func NewWithKafka(
	brokers string,
	config *KafkaConfig,
	factories map[string]eventbus.Factory,
	logger *slog.Logger,
) (*KafkaEventBus, error) {
	parsed := parseBrokers(brokers)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if config == nil {
		config = DefaultKafkaConfig()
	}
	if config.GroupID == "" {
		config.GroupID = DefaultKafkaConfig().GroupID
	}
	if strings.TrimSpace(config.TopicPrefix) == "" {
		config.TopicPrefix = DefaultKafkaConfig().TopicPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	mechanism, err := saslMechanism(config)
	if err != nil {
		return nil, err
	}
	dialer := &kafka.Dialer{Timeout: 5 * time.Second, SASLMechanism: mechanism}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(parsed...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           kafkaBatchTimeout,
	}
	if mechanism != nil {
		writer.Transport = &kafka.Transport{SASL: mechanism}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaEventBus{
		brokers:   parsed,
		writer:    writer,
		dialer:    dialer,
		config:    config,
		factories: factories,
		logger:    logger.With("bus", "kafka"),
		handlers:  make(map[string][]eventbus.HandlerFunc),
		readers:   make(map[string]*kafka.Reader),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Emit writes the event to its topic, keyed by type.
func (b *KafkaEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	envBytes, err := encode(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}
	msg := kafka.Message{
		Topic: topicNameFor(b.config.TopicPrefix, event.Type()),
		Key:   []byte(event.Type()),
		Value: envBytes,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

// Register adds a handler and starts one reader per event type.
func (b *KafkaEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	if _, ok := b.readers[eventType]; ok {
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topicNameFor(b.config.TopicPrefix, eventType),
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readers[eventType] = reader

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(eventType, reader)
	}()
}

func (b *KafkaEventBus) consume(eventType string, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || b.ctx.Err() != nil {
				return
			}
			b.logger.Error("kafka consume error", "event_type", eventType, "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		evt, err := decode(msg.Value, b.factories)
		if err != nil {
			b.logger.Error("failed to decode event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		} else {
			b.mu.RLock()
			handlers := append([]eventbus.HandlerFunc(nil), b.handlers[evt.Type()]...)
			b.mu.RUnlock()
			dispatch(b.ctx, b.logger, evt, handlers)
		}

		if err := reader.CommitMessages(b.ctx, msg); err != nil && b.ctx.Err() == nil {
			b.logger.Error("kafka commit error", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// Close stops the readers and flushes the writer.
func (b *KafkaEventBus) Close() error {
	b.cancel()
	b.mu.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return b.writer.Close()
}

func topicNameFor(prefix, eventType string) string {
	return strings.TrimSuffix(prefix, ".") + "." + eventType
}

func parseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func saslMechanism(config *KafkaConfig) (sasl.Mechanism, error) {
	username := strings.TrimSpace(config.SASLUsername)
	password := strings.TrimSpace(config.SASLPassword)
	if username == "" && password == "" {
		return nil, nil
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("kafka event bus: sasl username and password are required")
	}
	return plain.Mechanism{Username: username, Password: password}, nil
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
