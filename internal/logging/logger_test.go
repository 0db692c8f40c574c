package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestLogger_ConsoleLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Log(&RequestLog{
		RequestID:  "req-1",
		Method:     "GET",
		Path:       "/api/content/blog",
		Status:     200,
		DurationMs: 3,
		FromCache:  true,
	})

	line := buf.String()
	if !strings.Contains(line, "req-1") || !strings.Contains(line, "/api/content/blog") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "[cached]") {
		t.Fatalf("expected cached marker in %q", line)
	}
}

func TestLogger_ErrorLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Log(&RequestLog{RequestID: "req-2", Method: "PUT", Path: "/x", Status: 500, Error: "boom"})

	out := buf.String()
	if !strings.Contains(out, "✗") {
		t.Fatalf("expected failure marker, got %q", out)
	}
	if !strings.Contains(out, "error: boom") {
		t.Fatalf("expected error line, got %q", out)
	}
}

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.SetEnabled(false)

	l.Log(&RequestLog{RequestID: "req-3", Status: 200})
	if buf.Len() != 0 {
		t.Fatalf("expected no output when disabled, got %q", buf.String())
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.log")
	l := NewLogger(nil)
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}

	l.Log(&RequestLog{RequestID: "req-4", Method: "GET", Path: "/health", Status: 200})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var entry RequestLog
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("invalid JSON line %q: %v", data, err)
	}
	if entry.RequestID != "req-4" || entry.Timestamp.IsZero() {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestSetLevelFromString(t *testing.T) {
	defer SetLevelFromString("info")

	SetLevelFromString("debug")
	if !Op().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level to be enabled")
	}
	SetLevelFromString("error")
	if Op().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info level to be disabled at error level")
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if lvl, err := ParseLevel("WARNING"); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("ParseLevel(WARNING) = %v, %v", lvl, err)
	}
	if lvl, _ := ParseLevel(""); lvl != slog.LevelInfo {
		t.Fatalf("empty level = %v, want info", lvl)
	}
}

func TestOpContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := Op()
	SetOp(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetOp(prev)

	OpContext(context.Background()).Info("untraced")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("no trace context, got %q", buf.String())
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	buf.Reset()
	OpContext(ctx).Info("traced")
	out := buf.String()
	if !strings.Contains(out, "trace_id=4bf92f3577b34da6a3ce929d0e0e4736") || !strings.Contains(out, "span_id=00f067aa0ba902b7") {
		t.Fatalf("missing trace fields: %q", out)
	}
}
