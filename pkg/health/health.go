// Package health runs dependency checks concurrently and aggregates them into
// a Report. `oppy doctor` prints one.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/avoiney/oppy/pkg/logger"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
	StatusSkipped  Status = "skipped"
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Up, Down and Skipped build ComponentHealth values.
func Up(msg string) ComponentHealth { return ComponentHealth{Status: StatusUp, Message: msg} }

func Down(err error) ComponentHealth {
	return ComponentHealth{Status: StatusDown, Message: err.Error()}
}

func Skipped(msg string) ComponentHealth { return ComponentHealth{Status: StatusSkipped, Message: msg} }

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker manages registered checks and runs them concurrently.
type Checker struct {
	checks  map[string]Check
	timeout time.Duration
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewChecker creates an empty Checker. Each check gets at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  logger.WithComponent("health"),
	}
}

// Register adds a named check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks concurrently. The overall status is the
// worst status among the components; skipped components do not count.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			start := time.Now()
			result := check(cctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			if result.Status == StatusDown {
				c.logger.Warn("check failed", "check", name, "message", result.Message)
			}
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, comp := range report.Components {
		switch comp.Status {
		case StatusDown:
			report.Status = StatusDown
			return report
		case StatusDegraded:
			report.Status = StatusDegraded
		}
	}
	return report
}

// WriteText prints the report, one component per line in name order.
func (r Report) WriteText(w io.Writer) error {
	for _, name := range slices.Sorted(maps.Keys(r.Components)) {
		comp := r.Components[name]
		line := fmt.Sprintf("%-10s %-8s", name, comp.Status)
		if comp.Latency != "" && comp.Status != StatusSkipped {
			line += " " + comp.Latency
		}
		if comp.Message != "" {
			line += "  " + comp.Message
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "overall    %s\n", r.Status)
	return err
}
