package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/avoiney/oppy/pkg/logger"
)

// RetryConfig controls Retry. Zero values take defaults. Retryable decides
// whether an error is worth another attempt; nil retries every error.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Retryable      func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// backoff returns the pause before attempt n+1, n starting at 1.
func (c RetryConfig) backoff(n int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < n && d < float64(c.MaxDelay); i++ {
		d *= c.Multiplier
	}
	d *= 1 + c.JitterFraction*(2*rand.Float64()-1)
	return time.Duration(min(max(d, 0), float64(c.MaxDelay)))
}

// Retry calls fn until it succeeds, fails with a non-retryable error (which
// is returned as is), ctx ends or MaxAttempts calls have failed.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := logger.WithComponent("retry").With("operation", name)

	var err error
	for n := 1; ; n++ {
		if err = fn(); err == nil {
			if n > 1 {
				log.Debug("succeeded after retry", "attempt", n)
			}
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if n == cfg.MaxAttempts {
			return fmt.Errorf("%s failed %d times: %w", name, n, err)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s: retry abandoned: %w", name, ctx.Err())
		}
		wait := cfg.backoff(n)
		log.Warn("attempt failed", "attempt", n, "max_attempts", cfg.MaxAttempts, "retry_in", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry abandoned: %w", name, ctx.Err())
		}
	}
}
