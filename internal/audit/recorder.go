package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avoiney/oppy/pkg/logger"
)

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Recorder fans events out to its sinks.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{
		sinks:  sinks,
		logger: logger.WithComponent("audit"),
	}
}

// Record hands e to every sink. A nil Recorder does nothing.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	for _, s := range r.sinks {
		if err := s.Record(ctx, e); err != nil {
			r.logger.Warn("audit sink failed", "event_id", e.ID, "error", err)
		}
	}
}

// Close closes every sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
