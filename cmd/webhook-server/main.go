package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/channel"
	"github.com/example/whatsapp-gateway/internal/config"
	"github.com/example/whatsapp-gateway/internal/kafka"
	"github.com/example/whatsapp-gateway/internal/logger"
	"github.com/example/whatsapp-gateway/internal/webhook"
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
	log := baseLogger.With().Str("service", "webhook-server").Logger()

	channels, err := channel.LoadFile(cfg.Webhook.ChannelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load channels file")
	}
	registry := channel.NewRegistry(channels, log.With().Str("component", "channel-registry").Logger())

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log.With().Str("component", "kafka-producer").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	events, err := kafka.NewEventsPublisher(producer, cfg.Kafka.EventsTopic, log.With().Str("component", "events-publisher").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create events publisher")
	}

	auth, err := webhook.NewAuthenticator(registry, cfg.Webhook.InactiveNumbers, log.With().Str("component", "authenticator").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create authenticator")
	}

	handler, err := webhook.NewHandler(auth, events, log.With().Str("component", "webhook-handler").Logger(),
		webhook.WithMaxBodyBytes(cfg.Webhook.MaxBodyBytes))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create webhook handler")
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Str("topic", cfg.Kafka.EventsTopic).Msg("webhook server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func fail(stage string, err error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Fatal().Err(err).Str("stage", stage).Msg("webhook server init failed")
}
