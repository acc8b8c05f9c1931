package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/whatsapp-gateway/internal/baileys"
	"github.com/example/whatsapp-gateway/internal/channel"
	"github.com/example/whatsapp-gateway/internal/kafka"
	"github.com/example/whatsapp-gateway/internal/models"
)

// Pipeline receives canonical events for downstream processing
// (conversations, persistence, replies). It lives outside this adapter.
type Pipeline interface {
	Process(ctx context.Context, phoneNumber string, event map[string]any) error
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, phoneNumber string, event map[string]any) error

// Process calls the wrapped function.
func (f PipelineFunc) Process(ctx context.Context, phoneNumber string, event map[string]any) error {
	return f(ctx, phoneNumber, event)
}

// Config tunes the processor.
type Config struct {
	Concurrency int
}

// Dependencies lists the processor's collaborators.
type Dependencies struct {
	Channels   channel.Store
	Normalizer *baileys.Normalizer
	Pipeline   Pipeline
	Logger     zerolog.Logger
}

// Processor performs the work done once a webhook delivery is dequeued:
// decode the envelope, resolve the channel, normalize gateway payloads and
// hand the canonical event to the pipeline. Malformed records are dropped,
// never retried: replaying an unparseable payload cannot succeed.
type Processor struct {
	channels   channel.Store
	normalizer *baileys.Normalizer
	pipeline   Pipeline
	logger     zerolog.Logger
	sem        *semaphore.Weighted
}

// NewProcessor constructs a Processor.
func NewProcessor(cfg Config, deps Dependencies) (*Processor, error) {
	if deps.Channels == nil {
		return nil, errors.New("worker: channel store is required")
	}
	if deps.Normalizer == nil {
		return nil, errors.New("worker: normalizer is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("worker: pipeline is required")
	}
	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Processor{
		channels:   deps.Channels,
		normalizer: deps.Normalizer,
		pipeline:   deps.Pipeline,
		logger:     logger,
		sem:        semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

// Handle processes one dequeued record. Claims run concurrently per
// partition; the semaphore caps total in-flight work.
func (p *Processor) Handle(ctx context.Context, record *kafka.Record) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	var event models.WebhookEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		p.logger.Warn().
			Err(err).
			Int64("offset", record.Offset).
			Msg("malformed webhook event dropped")
		return nil
	}
	if event.Payload == nil {
		p.logger.Warn().
			Str("phone_number", event.PhoneNumber).
			Msg("webhook event without payload dropped")
		return nil
	}

	ch, ok := p.channels.Resolve(event.PhoneNumber)
	if !ok {
		p.logger.Warn().
			Str("phone_number", event.PhoneNumber).
			Msg("webhook event for unknown channel dropped")
		return nil
	}

	canonical := event.Payload
	if ch.Provider == models.ProviderBaileys {
		canonical = p.normalizer.Normalize(event.Payload)
	}

	if err := p.pipeline.Process(ctx, event.PhoneNumber, canonical); err != nil {
		return fmt.Errorf("worker: pipeline process: %w", err)
	}
	return nil
}
