package kafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Handler is invoked for every record delivered by the consumer. A non-nil
// error is logged; the record is still marked consumed because this pipeline
// carries no retry policy.
type Handler func(ctx context.Context, record *Record) error

// Record represents one Kafka message delivered to the worker.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// ConsumerOption customises the consumer during construction.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	config *sarama.Config
}

// WithConsumerConfig supplies a preconfigured Sarama config. It is cloned
// internally so the caller retains ownership.
func WithConsumerConfig(cfg *sarama.Config) ConsumerOption {
	return func(o *consumerOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// Consumer wraps a Sarama consumer group for the events topic.
type Consumer struct {
	logger  zerolog.Logger
	group   sarama.ConsumerGroup
	groupID string
}

// NewConsumer constructs a consumer group member.
func NewConsumer(brokers []string, groupID string, logger zerolog.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	settings := &consumerOptions{config: defaultConsumerConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}
	cfg := *settings.config

	group, err := sarama.NewConsumerGroup(brokers, groupID, &cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: create consumer group: %w", err)
	}

	c := &Consumer{logger: logger, group: group, groupID: groupID}
	go c.consumeErrors()
	return c, nil
}

// Consume subscribes to the topics and invokes handler for each record. It
// blocks until ctx is cancelled or an unrecoverable error occurs.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler Handler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: at least one topic is required")
	}
	if handler == nil {
		return errors.New("kafka consumer: handler is required")
	}

	gh := &groupHandler{logger: c.logger, handler: handler}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.group.Consume(ctx, topics, gh); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("kafka consumer: consume: %w", err)
		}
		// Rebalance: loop to rejoin the group.
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) consumeErrors() {
	for err := range c.group.Errors() {
		c.logger.Error().Err(err).Str("group", c.groupID).Msg("kafka consumer error")
	}
}

type groupHandler struct {
	logger  zerolog.Logger
	handler Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		record := &Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Timestamp: msg.Timestamp,
		}
		if err := h.handler(session.Context(), record); err != nil {
			h.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("record handler failed, dropping record")
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func defaultConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}
