// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// # Architecture Decision: Collector Agent Mode
//
// Traces are exported over OTLP HTTP to a local collector agent rather than
// directly to a vendor backend:
//
//   - The agent provides local buffering and retry
//   - Lower latency (localhost vs internet roundtrip)
//   - The agent handles authentication, so no API keys in the application
//
// # Configuration
//
// Config file (~/.ravel/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "ravel"
//
// The standard OTEL_EXPORTER_OTLP_ENDPOINT environment variable overrides
// the endpoint.
//
// # Verifying
//
// Test the OTLP receiver:
//
//	curl -v http://localhost:4318/v1/traces
//
// Spans are flushed on shutdown; expect them at the backend within a minute
// or two after the process exits.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/ravelchat/ravel/internal/config"
)

// DefaultEndpoint is the default local OTLP HTTP receiver.
const DefaultEndpoint = "localhost:4318"

// Setup installs a global TracerProvider exporting to the configured OTLP
// endpoint. Returns a shutdown function that flushes pending spans.
//
// When tracing is disabled, or the exporter cannot be created, the returned
// shutdown is a no-op and the global provider is left untouched; spans
// produced by otel.Tracer become cheap no-ops.
func Setup(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		return noop, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noop, nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName(cfg)),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return noop, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", serviceName(cfg),
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return "ravel"
}
