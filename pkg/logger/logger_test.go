package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLogger_FieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core)).With(Component("ingest"))

	l.Warn("level fallback applied",
		SessionID("s-1"),
		Row(3),
		Float64("average", 14.5),
		Bool("clamped", true),
		Err(errors.New("boom")),
		Err(nil),
		Latency(1500*time.Millisecond),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "level fallback applied", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "ingest", ctx["component"])
	assert.Equal(t, "s-1", ctx["session_id"])
	assert.Equal(t, int64(3), ctx["row"])
	assert.Equal(t, 14.5, ctx["average"])
	assert.Equal(t, true, ctx["clamped"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "1.5s", ctx["latency"])
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info("hello")
	assert.Equal(t, 1, logs.Len())

	// missing logger falls back to a no-op one
	assert.NotPanics(t, func() { FromContext(context.Background()).Info("dropped") })
	assert.Equal(t, 1, logs.Len())
}
