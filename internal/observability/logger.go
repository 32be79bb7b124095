package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is a zerolog logger that stamps events with the active span
type Logger struct {
	zl zerolog.Logger
}

// NewLogger writes to stdout, as JSON unless LOG_FORMAT=console
func NewLogger(config Config) *Logger {
	var out io.Writer = os.Stdout
	if config.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewLoggerWithWriter(config, out)
}

// NewLoggerWithWriter writes to w
func NewLoggerWithWriter(config Config, w io.Writer) *Logger {
	fields := zerolog.New(w).Level(levelFor(config.LogLevel)).With().Timestamp()
	if config.ServiceName != "" {
		fields = fields.Str("service", config.ServiceName)
	}
	if config.ServiceVersion != "" {
		fields = fields.Str("version", config.ServiceVersion)
	}
	if config.Environment != "" {
		fields = fields.Str("environment", config.Environment)
	}
	return &Logger{zl: fields.Logger()}
}

// NewNopLogger discards everything; used by tests and tools
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// levelFor accepts zerolog level names plus "warning"; anything else is info
func levelFor(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) event(ctx context.Context, lvl zerolog.Level) *zerolog.Event {
	e := l.zl.WithLevel(lvl)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	return e
}

func (l *Logger) Debug(ctx context.Context) *zerolog.Event { return l.event(ctx, zerolog.DebugLevel) }
func (l *Logger) Info(ctx context.Context) *zerolog.Event  { return l.event(ctx, zerolog.InfoLevel) }
func (l *Logger) Warn(ctx context.Context) *zerolog.Event  { return l.event(ctx, zerolog.WarnLevel) }
func (l *Logger) Error(ctx context.Context) *zerolog.Event { return l.event(ctx, zerolog.ErrorLevel) }

// OTELErrorHandler reports SDK export failures through the logger
func (l *Logger) OTELErrorHandler() func(error) {
	return func(err error) {
		l.zl.Warn().Err(err).Str("component", "otel").Msg("Telemetry export error")
	}
}
