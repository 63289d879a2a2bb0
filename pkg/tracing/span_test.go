package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansJoinParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "query")
	require.NotEmpty(t, root.TraceID)

	_, load := StartChildSpan(ctx, "load")
	load.End()
	_, eval := StartChildSpan(ctx, "evaluate")
	eval.SetAttr("matches", 2)
	eval.End()
	root.End()

	require.Len(t, root.Children(), 2)
	assert.Equal(t, root.TraceID, eval.TraceID)
	v, ok := eval.Attr("matches")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Same(t, root, SpanFromContext(ctx))

	eval.SetAttr("matches", 3)
	v, _ = eval.Attr("matches")
	assert.Equal(t, 3, v)
	_, ok = load.Attr("matches")
	assert.False(t, ok)
}

func TestDetachedChild(t *testing.T) {
	_, s := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, s.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLogOnlyAtDebug(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "query")
	_, child := StartChildSpan(ctx, "evaluate")
	child.End()
	root.End()

	var buf bytes.Buffer
	info := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	root.Log(info)
	assert.Empty(t, buf.String())

	debug := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(debug)
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=span"))
	assert.Contains(t, buf.String(), "span=evaluate")
	assert.Contains(t, buf.String(), "depth=1")
}
