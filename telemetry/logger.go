package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry so log lines can be
// correlated with traces.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a logger tagged with the task or service name.
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger carrying the context for trace propagation.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// SetLevel applies the configured verbosity globally.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// LogCycleStart logs the beginning of one task cycle.
func (l *Logger) LogCycleStart(ctx context.Context, task string) {
	l.WithContext(ctx).Info().
		Str("task", task).
		Msg("cycle started")
}

// LogCycleEnd logs the outcome of one task cycle.
func (l *Logger) LogCycleEnd(ctx context.Context, task string, durationMs float64, err error) {
	if err != nil {
		l.WithContext(ctx).Error().
			Err(err).
			Str("task", task).
			Float64("duration_ms", durationMs).
			Msg("cycle failed")
		return
	}
	l.WithContext(ctx).Info().
		Str("task", task).
		Float64("duration_ms", durationMs).
		Msg("cycle completed")
}
