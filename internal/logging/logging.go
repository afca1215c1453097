// Package logging builds the process-wide slog handler.
//
// Records are encoded by a zap core bridged into slog, and every record logged
// with a context that carries an OpenTelemetry span gets trace_id and span_id
// attributes for log-trace correlation.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON encodes records as JSON lines
	FormatJSON = "json"

	// FormatConsole encodes records for humans
	FormatConsole = "console"
)

// Option configures the handler built by NewHandler
type Option func(*handlerConfig)

type handlerConfig struct {
	level  slog.Level
	format string
	output zapcore.WriteSyncer
	name   string
}

// WithLevel sets the minimum level
func WithLevel(level slog.Level) Option {
	return func(cfg *handlerConfig) {
		cfg.level = level
	}
}

// WithFormat selects FormatJSON or FormatConsole
func WithFormat(format string) Option {
	return func(cfg *handlerConfig) {
		cfg.format = format
	}
}

// WithOutput redirects records away from stderr
func WithOutput(w io.Writer) Option {
	return func(cfg *handlerConfig) {
		cfg.output = zapcore.AddSync(w)
	}
}

// WithName sets the logger name attached to every record
func WithName(name string) Option {
	return func(cfg *handlerConfig) {
		cfg.name = name
	}
}

// Handler is an slog.Handler backed by a zap core
type Handler struct {
	slog.Handler
	core  zapcore.Core
	level zap.AtomicLevel
}

// SetLevel changes the minimum level of this handler and all handlers derived from it
func (h *Handler) SetLevel(level slog.Level) {
	h.level.SetLevel(toZapLevel(level))
}

// Sync flushes any buffered records
func (h *Handler) Sync(context.Context) error {
	return h.core.Sync()
}

// NewHandler creates the process-wide handler.
// Output goes to stderr by default to keep stdout clean for commands that print data.
func NewHandler(opts ...Option) *Handler {
	cfg := &handlerConfig{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: zapcore.Lock(os.Stderr),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.format == FormatConsole {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	level := zap.NewAtomicLevelAt(toZapLevel(cfg.level))
	core := zapcore.NewCore(encoder, cfg.output, level)

	handlerOpts := []zapslog.HandlerOption{zapslog.WithCaller(true)}
	if cfg.name != "" {
		handlerOpts = append(handlerOpts, zapslog.WithName(cfg.name))
	}

	return &Handler{
		Handler: &traceHandler{Handler: zapslog.NewHandler(core, handlerOpts...)},
		core:    core,
		level:   level,
	}
}

// ParseLevel maps a level name to an slog.Level. The boolean is false for unknown names,
// in which case LevelInfo is returned.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func toZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// traceHandler wraps an slog.Handler to inject OpenTelemetry trace_id and
// span_id into every record logged with a span in its context.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
