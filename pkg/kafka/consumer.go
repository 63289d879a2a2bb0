package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/avoiney/oppy/pkg/config"
	"github.com/avoiney/oppy/pkg/logger"
)

// MessageHandler processes one message. A returned error is logged and the
// message is not committed.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer feeds the audit topic to a MessageHandler. Inside a consumer
// group offsets are committed after each handled message; without one the
// consumer reads partition 0 and commits nothing.
type Consumer struct {
	reader  *kafka.Reader
	grouped bool
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer reads cfg.AuditTopic. fromStart picks the oldest message as
// the starting point when no committed offset applies.
func NewConsumer(cfg config.KafkaConfig, fromStart bool, handler MessageHandler) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.AuditTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafka.LastOffset,
	}
	if fromStart {
		rc.StartOffset = kafka.FirstOffset
	}
	r := kafka.NewReader(rc)
	grouped := cfg.ConsumerGroup != ""
	if !grouped {
		// StartOffset only applies to group readers.
		_ = r.SetOffset(rc.StartOffset)
	}
	return &Consumer{
		reader:  r,
		grouped: grouped,
		handler: handler,
		logger:  logger.WithComponent("kafka-consumer").With("topic", cfg.AuditTopic, "group", cfg.ConsumerGroup),
	}
}

// Start blocks until ctx ends, which is not an error, or a fetch fails.
// The reader is closed on return.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Debug("consumer started")
	for {
		msg, err := c.fetch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading audit topic: %w", err)
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) fetch(ctx context.Context) (kafka.Message, error) {
	if c.grouped {
		return c.reader.FetchMessage(ctx)
	}
	return c.reader.ReadMessage(ctx)
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		log.Error("handling message failed", "error", err)
		return
	}
	if !c.grouped {
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("committing offset failed", "error", err)
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
