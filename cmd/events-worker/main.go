package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/baileys"
	"github.com/example/whatsapp-gateway/internal/channel"
	"github.com/example/whatsapp-gateway/internal/config"
	"github.com/example/whatsapp-gateway/internal/kafka"
	"github.com/example/whatsapp-gateway/internal/logger"
	"github.com/example/whatsapp-gateway/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "events-worker").Logger()

	channels, err := channel.LoadFile(cfg.Webhook.ChannelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load channels file")
	}
	registry := channel.NewRegistry(channels, log.With().Str("component", "channel-registry").Logger())

	normalizer := baileys.NewNormalizer(log.With().Str("component", "normalizer").Logger())

	cons, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, log.With().Str("component", "kafka-consumer").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	defer func() {
		if err := cons.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer")
		}
	}()

	// Downstream integration point. The real pipeline (conversations,
	// persistence) plugs in here; by default processed events are logged.
	pipeline := worker.PipelineFunc(func(_ context.Context, phoneNumber string, event map[string]any) error {
		log.Info().
			Str("phone_number", phoneNumber).
			Int("messages", collectionLen(event, "messages")).
			Int("statuses", collectionLen(event, "statuses")).
			Msg("canonical event processed")
		return nil
	})

	processor, err := worker.NewProcessor(worker.Config{Concurrency: cfg.Worker.Concurrency}, worker.Dependencies{
		Channels:   registry,
		Normalizer: normalizer,
		Pipeline:   pipeline,
		Logger:     log.With().Str("component", "processor").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create processor")
	}

	topics := []string{cfg.Kafka.EventsTopic}
	log.Info().Str("topic", cfg.Kafka.EventsTopic).Str("group", cfg.Kafka.ConsumerGroup).Msg("events worker started")

	if err := cons.Consume(ctx, topics, processor.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer terminated with error")
	}
}

func collectionLen(event map[string]any, key string) int {
	list, _ := event[key].([]any)
	return len(list)
}

func fail(stage string, err error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Fatal().Err(err).Str("stage", stage).Msg("events worker init failed")
}
