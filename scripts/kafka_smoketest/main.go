package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	infraeventbus "github.com/amirasaad/fxdate/infra/eventbus"
	"github.com/amirasaad/fxdate/pkg/eventbus"
	"github.com/amirasaad/fxdate/pkg/service/conversion"
	"github.com/google/uuid"
)

// RunSmokeTest emits a session event through the Kafka bus and waits for
// it to come back through a consumer group, to verify a local cluster.
func RunSmokeTest() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	brokers := strings.TrimSpace(os.Getenv("BROKERS"))
	if brokers == "" {
		brokers = "localhost:9093,localhost:9092"
	}
	cfg := infraeventbus.DefaultKafkaConfig()
	if groupID := strings.TrimSpace(os.Getenv("GROUP_ID")); groupID != "" {
		cfg.GroupID = groupID
	}
	// A fresh group per run so old messages are not replayed into it.
	cfg.GroupID += "-smoke-" + uuid.NewString()[:8]

	bus, err := infraeventbus.NewWithKafka(brokers, cfg, conversion.EventFactories(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	want := &conversion.RatesLoadedEvent{
		ID:        uuid.NewString(),
		SessionID: "smoke",
		Base:      "CAD",
		Date:      time.Now().UTC().Format("2006-01-02"),
		AsOf:      time.Now().UTC().Format("2006-01-02"),
	}
	received := make(chan *conversion.RatesLoadedEvent, 8)
	bus.Register(conversion.EventRatesLoaded, func(_ context.Context, e eventbus.Event) error {
		if ev, ok := e.(*conversion.RatesLoadedEvent); ok {
			received <- ev
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bus.Emit(ctx, want); err != nil {
		logger.Error("emit failed", "error", err)
		return err
	}
	logger.Info("produced", "event_type", want.Type(), "id", want.ID)

	for {
		select {
		case got := <-received:
			if got.ID != want.ID {
				logger.Info("skipping unrelated event", "id", got.ID)
				continue
			}
			logger.Info("consumed", "event_type", got.Type(), "id", got.ID)
			logger.Info("kafka smoke test passed")
			return nil
		case <-ctx.Done():
			logger.Error("event not received", "id", want.ID)
			return errors.New("kafka smoke test timed out")
		}
	}
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	if err := RunSmokeTest(); err != nil {
		os.Exit(1)
	}
}
