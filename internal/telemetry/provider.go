// Package telemetry configures OpenTelemetry tracing for the functions and
// exports spans to Honeycomb over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pedro-hbl/atm-lambda-otel/internal/config"
)

const (
	// HeaderTeam carries the Honeycomb API key
	HeaderTeam = "x-honeycomb-team"
	// HeaderDataset carries the Honeycomb dataset name
	HeaderDataset = "x-honeycomb-dataset"
)

// Provider owns the tracer provider of a function
type Provider struct {
	tp        *sdktrace.TracerProvider
	exporting bool
}

// Setup builds and registers the global tracer provider. Without an API key
// spans are still created but nothing is exported.
func Setup(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Provider, error) {
	res := Resource(cfg)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	exporting := false
	if err := cfg.RequireAPIKey(); err != nil {
		logger.Warn("traces will not be exported", "error", err)
	} else {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.HoneycombEndpoint),
			otlptracehttp.WithHeaders(Headers(cfg)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		exporting = true
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		"dataset", cfg.HoneycombDataset,
		"exporting", exporting,
	)

	return &Provider{tp: tp, exporting: exporting}, nil
}

// Headers returns the OTLP headers that route spans to the dataset
func Headers(cfg config.Config) map[string]string {
	return map[string]string{
		HeaderTeam:    cfg.HoneycombAPIKey,
		HeaderDataset: cfg.HoneycombDataset,
	}
}

// Resource identifies the function emitting the spans
func Resource(cfg config.Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("aws.lambda.function_name", cfg.FunctionName),
	)
}

// TracerProvider returns the SDK provider, for instrumentation that needs it
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.tp
}

// Tracer returns a named tracer
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Exporting reports whether spans leave the process
func (p *Provider) Exporting() bool {
	return p.exporting
}

// ForceFlush exports every finished span
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
