package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline of timeout, or without one when
// timeout is not positive. fn must return once its context is done. When the
// deadline is what ended fn, the error wraps context.DeadlineExceeded
// whatever fn returned.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(tctx)
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", name, ctx.Err())
	case tctx.Err() != nil:
		return fmt.Errorf("%s: no result after %v: %w", name, timeout, context.DeadlineExceeded)
	}
	return err
}
