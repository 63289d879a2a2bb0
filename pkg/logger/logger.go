// Package logger configures the process-wide slog logger. The level lives in a
// LevelVar so the shell can switch debug output on and off at runtime.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

var level = new(slog.LevelVar)

// Setup installs the default logger writing to stderr.
func Setup(lvl string, format string) {
	SetupWriter(os.Stderr, lvl, format)
}

// SetupWriter installs the default logger writing to w.
func SetupWriter(w io.Writer, lvl string, format string) {
	level.Set(ParseLevel(lvl))
	opts := &slog.HandlerOptions{
		Level: level,
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetDebug toggles between debug and info level.
func SetDebug(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// DebugEnabled reports whether debug records are currently emitted.
func DebugEnabled() bool {
	return level.Level() <= slog.LevelDebug
}

func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, contextKey{}, queryID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if queryID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("query_id", queryID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func ParseLevel(lvl string) slog.Level {
	switch lvl {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
