package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/avoiney/oppy/pkg/config"
	"github.com/avoiney/oppy/pkg/kafka"
	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/resilience"
)

var (
	ErrSinkClosed = errors.New("audit sink closed")
	errBufferFull = errors.New("audit buffer full, event dropped")
)

// Publisher is the part of *kafka.Producer the sink uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// KafkaSink buffers events and publishes them in batches from a background
// goroutine. Publishing goes through a circuit breaker so an unreachable
// broker costs one timeout, not one per query.
type KafkaSink struct {
	pub           Publisher
	breaker       *resilience.CircuitBreaker
	events        chan Event
	done          chan struct{}
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewKafkaSink creates a sink holding up to bufferSize unsent events.
func NewKafkaSink(pub Publisher, breaker *resilience.CircuitBreaker, bufferSize int) *KafkaSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &KafkaSink{
		pub:           pub,
		breaker:       breaker,
		events:        make(chan Event, bufferSize),
		done:          make(chan struct{}),
		batchSize:     50,
		flushInterval: time.Second,
		logger:        logger.WithComponent("audit-kafka"),
	}
}

// Start launches the publish loop. It stops when ctx is done or on Close,
// flushing what is buffered either way.
func (s *KafkaSink) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.loop(ctx)
	s.logger.Debug("audit sink started", "buffer_size", cap(s.events))
}

func (s *KafkaSink) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, s.batchSize)
	flush := func(ctx context.Context) {
		s.flush(ctx, batch)
		batch = batch[:0]
	}
	final := func() {
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		flush(fctx)
	}
	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				final()
				return
			}
			batch = append(batch, kafka.Event{Key: e.Profile, Value: e})
			if len(batch) >= s.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case e, ok := <-s.events:
					if ok {
						batch = append(batch, kafka.Event{Key: e.Profile, Value: e})
					}
					drained = !ok
				default:
					drained = true
				}
			}
			final()
			return
		}
	}
}

func (s *KafkaSink) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	err := s.breaker.Execute(func() error {
		return s.pub.PublishBatch(ctx, batch)
	})
	if err != nil {
		s.logger.Warn("audit batch dropped", "events", len(batch), "error", err)
		return
	}
	s.logger.Debug("audit batch published", "events", len(batch))
}

// Record queues e without blocking.
func (s *KafkaSink) Record(_ context.Context, e Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.events <- e:
		return nil
	default:
		return errBufferFull
	}
}

// Close flushes buffered events and closes the publisher.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return s.pub.Close()
}

// FormatEvent renders e as one line for `oppy audit tail`.
func FormatEvent(e Event) string {
	where := e.Profile
	if e.Vault != "" {
		where += "/" + e.Vault
	}
	outcome := fmt.Sprintf("%d matches", e.Matches)
	if e.Failed() {
		outcome = "error: " + e.Error
	}
	return fmt.Sprintf("%s  %-16s %-20s %7.1fms  %s",
		e.Timestamp.UTC().Format(time.RFC3339), where, outcome, e.LatencyMs, e.Query)
}

// TailHandler prints each audit message to w. With profile set, events of
// other profiles are skipped. Undecodable messages are logged and skipped.
func TailHandler(w io.Writer, profile string) kafka.MessageHandler {
	log := logger.WithComponent("audit-tail")
	return func(_ context.Context, _ []byte, value []byte) error {
		e, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			log.Warn("skipping malformed audit event", "error", err)
			return nil
		}
		if profile != "" && e.Profile != profile {
			return nil
		}
		_, err = fmt.Fprintln(w, FormatEvent(e))
		return err
	}
}

// Tail streams audit events from Kafka to w until ctx is cancelled.
func Tail(ctx context.Context, cfg config.KafkaConfig, fromStart bool, profile string, w io.Writer) error {
	return kafka.NewConsumer(cfg, fromStart, TailHandler(w, profile)).Start(ctx)
}
