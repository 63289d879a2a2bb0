// Package tracing times the phases of a query (cache load, vault fetch,
// compile, evaluate) as a tree of spans carried through the context and
// logged at debug level when the root ends.
package tracing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

type attr struct {
	key   string
	value any
}

// Span is one timed phase. Children started from its context are attached
// to it and share its TraceID.
type Span struct {
	Name    string
	TraceID string

	start    time.Time
	mu       sync.Mutex
	elapsed  time.Duration
	attrs    []attr
	children []*Span
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, start: time.Now()}
}

// StartSpan opens a root span with a new trace id.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := newSpan(name, uuid.NewString())
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and has no trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		s := newSpan(name, "")
		return context.WithValue(ctx, spanKey{}, s), s
	}
	s := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.children = append(parent.children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's elapsed time.
func (s *Span) End() {
	s.mu.Lock()
	s.elapsed = time.Since(s.start)
	s.mu.Unlock()
}

func (s *Span) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// SetAttr records key=value; a later value for the same key wins.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = slices.DeleteFunc(s.attrs, func(a attr) bool { return a.key == key })
	s.attrs = append(s.attrs, attr{key: key, value: value})
}

// Attr returns the value recorded for key.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attrs {
		if a.key == key {
			return a.value, true
		}
	}
	return nil, false
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// Log writes one debug record per span, depth first. Nothing is built when
// l drops debug records.
func (s *Span) Log(l *slog.Logger) {
	ctx := context.Background()
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.walk(0, func(span *Span, depth int) {
		span.mu.Lock()
		attrs := []slog.Attr{
			slog.String("trace_id", span.TraceID),
			slog.String("span", span.Name),
			slog.Float64("duration_ms", float64(span.elapsed.Microseconds())/1000),
			slog.Int("depth", depth),
		}
		for _, a := range span.attrs {
			attrs = append(attrs, slog.Any(a.key, a.value))
		}
		span.mu.Unlock()
		l.LogAttrs(ctx, slog.LevelDebug, "span", attrs...)
	})
}

func (s *Span) walk(depth int, visit func(*Span, int)) {
	visit(s, depth)
	for _, child := range s.Children() {
		child.walk(depth+1, visit)
	}
}
