package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/models"
)

// SyncPublisher captures the producer behaviour the events publisher needs.
type SyncPublisher interface {
	Publish(topic string, key, payload []byte, headers map[string][]byte) error
}

// EventsPublisher enqueues raw webhook deliveries onto the events topic,
// keyed by phone number so one channel's events stay ordered.
type EventsPublisher struct {
	producer SyncPublisher
	topic    string
	logger   zerolog.Logger
}

// NewEventsPublisher constructs an EventsPublisher.
func NewEventsPublisher(producer SyncPublisher, topic string, logger zerolog.Logger) (*EventsPublisher, error) {
	if producer == nil {
		return nil, errors.New("events publisher: producer is required")
	}
	if topic == "" {
		return nil, errors.New("events publisher: topic is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &EventsPublisher{producer: producer, topic: topic, logger: logger}, nil
}

// PublishEvent writes the webhook event to the events topic.
func (p *EventsPublisher) PublishEvent(_ context.Context, event models.WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events publisher: marshal event: %w", err)
	}

	headers := map[string][]byte{"content-type": []byte("application/json")}
	if err := p.producer.Publish(p.topic, []byte(event.PhoneNumber), payload, headers); err != nil {
		return fmt.Errorf("events publisher: publish event: %w", err)
	}
	p.logger.Debug().Str("phone_number", event.PhoneNumber).Msg("webhook event enqueued")
	return nil
}
