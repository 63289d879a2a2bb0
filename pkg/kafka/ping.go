package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/avoiney/oppy/pkg/config"
)

// Ping succeeds when at least one broker accepts a connection and knows the
// audit topic.
func Ping(ctx context.Context, cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, broker := range cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dialing %s: %w", broker, err))
			continue
		}
		_, err = conn.ReadPartitions(cfg.AuditTopic)
		conn.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("reading partitions of %s from %s: %w", cfg.AuditTopic, broker, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}
