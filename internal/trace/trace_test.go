package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledByDefault(t *testing.T) {
	t.Setenv("LOG_TRACING_ENABLED", "")
	require.NoError(t, Init())
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Equal(t, context.Background(), ctx)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_TRACING_ENABLED", "true")
	t.Setenv("TRACE_PRETTY", "false")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("BOT_VERSION", "v0.3.1")

	cfg := LoadConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Pretty)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, "v0.3.1", cfg.Version)

	t.Setenv("TRACE_SAMPLE_RATIO", "1.5")
	assert.Equal(t, 1.0, LoadConfigFromEnv().SampleRatio)
}

func TestSpansExported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(Config{Enabled: true, SampleRatio: 1, Output: &buf}))
	require.True(t, Enabled())

	_, span := StartSpan(context.Background(), "broker.Balance")
	sc := span.SpanContext()
	span.End()

	require.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())

	require.NoError(t, Shutdown(context.Background()))
	assert.False(t, Enabled())
	out := buf.String()
	assert.Contains(t, out, "broker.Balance")
	assert.Contains(t, out, "kis-trading-bot")
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "compact output is one line per span")
}

func TestZeroRatioDropsSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(Config{Enabled: true, SampleRatio: 0, Output: &buf}))

	_, span := StartSpan(context.Background(), "engine.Step")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.NotContains(t, buf.String(), "engine.Step")
}
