package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"loud", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(tt.level, FormatText, &bytes.Buffer{})
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", FormatJSON, &buf)
	logger.WithField("stage", "sandbox").Warn("No sandbox primitive available")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sandbox", entry["stage"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "No sandbox primitive available", entry["msg"])
}

func TestWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", FormatJSON, &buf)

	// No active span leaves the logger untouched
	assert.Equal(t, logrus.FieldLogger(logger), WithTraceContext(context.Background(), logger))

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "run")
	defer span.End()

	WithTraceContext(ctx, logger).Info("traced")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", FormatText, &buf)

	func() {
		defer RecoverPanic(logger, "test")
		panic("boom")
	}()

	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))
	assert.EqualError(t, MustRecover("boom"), "panic: boom")
}
