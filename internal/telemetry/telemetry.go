package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by the monitoring loop.
const TracerName = "github.com/qiniu/cloudmonitor"

type Config struct {
	ServiceName    string
	ServiceVersion string
	EnableTracing  bool
}

// Init installs a global tracer provider exporting to stdout when tracing is
// enabled. The returned shutdown flushes pending spans and is always non-nil.
func Init(cfg Config) (func(context.Context) error, error) {
	if !cfg.EnableTracing {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	exporter, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the process-wide tracer; a no-op one until Init enables tracing.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
