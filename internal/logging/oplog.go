package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	opLogger.Store(newOpLogger("text", os.Stderr))
}

func newOpLogger(format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Op returns the operational logger for daemon and cache events. Request
// lines go through Logger instead.
func Op() *slog.Logger {
	return opLogger.Load()
}

// OpContext returns Op annotated with the trace and span IDs carried by ctx,
// so warnings raised while serving a request can be found from its trace.
func OpContext(ctx context.Context) *slog.Logger {
	l := opLogger.Load()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// SetOp replaces the operational logger. Tests use it to capture output.
func SetOp(l *slog.Logger) {
	if l != nil {
		opLogger.Store(l)
	}
}

// InitStructured reconfigures the operational logger.
// format: "text" (default) or "json"; level: debug, info, warn or error.
func InitStructured(format, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logLevel.Set(lvl)
	opLogger.Store(newOpLogger(format, os.Stderr))
	return nil
}

// ParseLevel maps a level name to its slog level. An empty name is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLevelFromString sets the operational log level; unknown names are
// ignored.
func SetLevelFromString(level string) {
	if lvl, err := ParseLevel(level); err == nil {
		logLevel.Set(lvl)
	}
}
