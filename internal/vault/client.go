// Package vault drives the op executable: sign-in, item listing, item
// retrieval and the version/update passthroughs.
package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/avoiney/oppy/internal/records"
	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/metrics"
	"github.com/avoiney/oppy/pkg/resilience"
)

// SessionVar is the environment variable op reads the session of domain from.
func SessionVar(domain string) string {
	return "OP_SESSION_" + domain
}

// Session authenticates commands against one account.
type Session struct {
	Domain string
	Token  string
}

func (s Session) env() []string {
	return []string{SessionVar(s.Domain) + "=" + s.Token}
}

// Client runs op commands with a per-command timeout.
type Client struct {
	runner  Runner
	timeout time.Duration
	retries int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a Client. m may be nil.
func NewClient(runner Runner, cfg config.VaultConfig, m *metrics.Metrics) *Client {
	return &Client{
		runner:  runner,
		timeout: cfg.CommandTimeout,
		retries: cfg.Retries,
		metrics: m,
		logger:  logger.WithComponent("vault"),
	}
}

// SignIn exchanges the master password for a session token.
func (c *Client) SignIn(ctx context.Context, domain, password string) (string, error) {
	out, err := c.run(ctx, Command{
		Args:  []string{"signin", "--output=raw", domain},
		Stdin: password,
	})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", apperrors.New(apperrors.ErrNotLoggedIn, apperrors.ExitAuth, "op signin returned no session")
	}
	return token, nil
}

// ListItems returns the raw JSON listing of vault, or of every vault when
// vault is empty. Transient failures are retried.
func (c *Client) ListItems(ctx context.Context, s Session, vault string) ([]byte, error) {
	cmd := Command{Args: []string{"list", "items"}, Env: s.env()}
	if vault != "" {
		cmd.Args = append(cmd.Args, "--vault="+vault)
	}
	var out []byte
	err := resilience.Retry(ctx, "op list items", resilience.RetryConfig{
		MaxAttempts: c.retries,
		Retryable:   retryable,
	}, func() error {
		var err error
		out, err = c.run(ctx, cmd)
		return err
	})
	return out, err
}

// GetItem returns the full item identified by ref (uuid or title).
func (c *Client) GetItem(ctx context.Context, s Session, vault, ref string) (records.Record, error) {
	cmd := Command{Args: []string{"get", "item"}, Env: s.env()}
	if vault != "" {
		cmd.Args = append(cmd.Args, "--vault="+vault)
	}
	cmd.Args = append(cmd.Args, ref)
	out, err := c.run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, apperrors.Newf(apperrors.ErrItemNotFound, apperrors.ExitNotFound, "no item %q", ref)
	}
	return records.DecodeRecord(out)
}

// Version returns the op version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, Command{Args: []string{"--version"}})
	return strings.TrimSpace(string(out)), err
}

// Update asks op to check for a newer release and returns what it printed.
func (c *Client) Update(ctx context.Context) (string, error) {
	out, err := c.run(ctx, Command{Args: []string{"update"}})
	return strings.TrimSpace(string(out)), err
}

func (c *Client) run(ctx context.Context, cmd Command) ([]byte, error) {
	name := cmd.Name()
	start := time.Now()
	var res Result
	err := resilience.WithTimeout(ctx, c.timeout, "op "+name, func(ctx context.Context) error {
		var runErr error
		res, runErr = c.runner.Run(ctx, cmd)
		return classify(name, res, runErr)
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.VaultCommandsTotal.WithLabelValues(name, status).Inc()
		c.metrics.VaultCommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	c.logger.Debug("op command finished", "command", name, "status", status, "duration", time.Since(start))
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// classify turns a run outcome into an error. Output on stderr with nothing
// on stdout is a failure even when op exits zero.
func classify(name string, res Result, runErr error) error {
	stderr := strings.TrimSpace(string(res.Stderr))
	if runErr == nil && (stderr == "" || len(bytes.TrimSpace(res.Stdout)) > 0) {
		return nil
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return apperrors.Newf(apperrors.ErrUnavailable, apperrors.ExitUnavailable, "op executable not found: %v", runErr)
	}
	if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("op %s: %w", name, runErr)
	}
	if stderr == "" && runErr != nil {
		stderr = runErr.Error()
	}
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "not currently signed in"),
		strings.Contains(lower, "session expired"),
		strings.Contains(lower, "authentication required"),
		strings.Contains(lower, "invalid session"),
		strings.Contains(lower, "unauthorized"):
		return apperrors.New(apperrors.ErrNotLoggedIn, apperrors.ExitAuth, stderr)
	case strings.Contains(lower, "doesn't seem to be an item"),
		strings.Contains(lower, "no item found"):
		return apperrors.New(apperrors.ErrItemNotFound, apperrors.ExitNotFound, stderr)
	}
	return apperrors.Newf(apperrors.ErrCommandFailed, apperrors.ExitFailure, "op %s: %s", name, stderr)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrNotLoggedIn) &&
		!errors.Is(err, apperrors.ErrItemNotFound) &&
		!errors.Is(err, apperrors.ErrUnavailable) &&
		!errors.Is(err, context.Canceled)
}
