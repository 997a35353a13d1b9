package trace

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "kis-trading-bot"

// Config controls span export for the bot.
type Config struct {
	Enabled bool
	// Pretty indents each exported span; off gives one JSON object per line.
	Pretty bool
	// SampleRatio is the share of root ticks that are recorded, 0 to 1.
	SampleRatio float64
	Version     string
	// Output defaults to stderr so spans stay apart from JSON logs on stdout.
	Output io.Writer
}

// LoadConfigFromEnv reads LOG_TRACING_ENABLED, TRACE_PRETTY,
// TRACE_SAMPLE_RATIO and BOT_VERSION.
func LoadConfigFromEnv() Config {
	return Config{
		Enabled:     envBool("LOG_TRACING_ENABLED", false),
		Pretty:      envBool("TRACE_PRETTY", true),
		SampleRatio: envRatio("TRACE_SAMPLE_RATIO", 1),
		Version:     os.Getenv("BOT_VERSION"),
	}
}

var (
	mu       sync.RWMutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
)

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// InitWithConfig installs a tracer provider for cfg. A disabled config leaves
// StartSpan as a pass-through.
func InitWithConfig(cfg Config) error {
	if !cfg.Enabled {
		mu.Lock()
		tracer = nil
		mu.Unlock()
		return nil
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return err
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	mu.Lock()
	provider = tp
	tracer = tp.Tracer(serviceName)
	mu.Unlock()
	return nil
}

// Shutdown flushes pending spans and turns tracing off.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider, tracer = nil, nil
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := tracer
	mu.RUnlock()
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return tracer != nil
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envRatio(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return def
	}
	return v
}
