package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line: %s", line)
		records = append(records, rec)
	}
	return records
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   slog.Level
		wantOK bool
	}{
		{input: "debug", want: slog.LevelDebug, wantOK: true},
		{input: "INFO", want: slog.LevelInfo, wantOK: true},
		{input: "", want: slog.LevelInfo, wantOK: true},
		{input: "warning", want: slog.LevelWarn, wantOK: true},
		{input: " warn ", want: slog.LevelWarn, wantOK: true},
		{input: "error", want: slog.LevelError, wantOK: true},
		{input: "verbose", want: slog.LevelInfo, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNewHandler_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithOutput(&buf), WithLevel(slog.LevelWarn)))

	logger.Info("dropped")
	logger.Warn("kept", "pass_id", "abc")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0]["msg"])
	assert.Equal(t, "warn", records[0]["level"])
	assert.Equal(t, "abc", records[0]["pass_id"])
	assert.Contains(t, records[0], "caller")
}

func TestNewHandler_TraceCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithOutput(&buf), WithName("autosave")))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "pass")
	logger.InfoContext(ctx, "with span")
	span.End()

	logger.With("instance", "doc").InfoContext(context.Background(), "without span")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, span.SpanContext().TraceID().String(), records[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), records[0]["span_id"])
	assert.Equal(t, "autosave", records[0]["logger"])

	assert.NotContains(t, records[1], "trace_id")
	assert.Equal(t, "doc", records[1]["instance"])
}

func TestNewHandler_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewHandler(WithOutput(&buf), WithFormat(FormatConsole))
	slog.New(h).Error("save failed", "error", "disk full")
	require.NoError(t, h.Sync(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "save failed")
	assert.Contains(t, out, "disk full")
}

func TestHandler_SetLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewHandler(WithOutput(&buf))
	logger := slog.New(h).With("component", "test")

	logger.Debug("hidden")
	h.SetLevel(slog.LevelDebug)
	logger.Debug("visible")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "visible", records[0]["msg"])
	assert.Equal(t, "debug", records[0]["level"])
}
