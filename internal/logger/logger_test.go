package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { defaultLogger = nil })

	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-1"), 42)
	WithContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "user_id=42") {
		t.Fatalf("missing context attributes: %q", out)
	}
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { defaultLogger = nil })

	tid := trace.TraceID{0x0a, 0x0b}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: trace.SpanID{1}})
	WithContext(trace.ContextWithSpanContext(context.Background(), sc)).Info("traced")

	if !strings.Contains(buf.String(), "trace_id="+tid.String()) {
		t.Fatalf("missing trace id: %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { level.Set(slog.LevelInfo) })

	if err := SetLevel("debug"); err != nil || level.Level() != slog.LevelDebug {
		t.Fatalf("SetLevel(debug) = %v, level %v", err, level.Level())
	}
	if err := SetLevel("WARN"); err != nil || level.Level() != slog.LevelWarn {
		t.Fatalf("SetLevel(WARN) = %v, level %v", err, level.Level())
	}
	if err := SetLevel("loud"); err == nil || level.Level() != slog.LevelInfo {
		t.Fatalf("SetLevel(loud) = %v, level %v", err, level.Level())
	}
}
