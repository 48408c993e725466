// Package tracing wires the OpenTelemetry tracer provider used by the feed
// API and offers span helpers for ranking stages and store queries.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceVersion is reported when Config.ServiceVersion is empty.
const DefaultServiceVersion = "0.1.0"

// Exporter names accepted in Config.ExporterType. An empty type means HTTP.
const (
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

const exporterDialTimeout = 10 * time.Second

var (
	ErrMissingServiceName = errors.New("tracing: service name is required")
	ErrSamplingRate       = errors.New("tracing: sampling rate must be within [0, 1]")
	ErrUnknownExporter    = errors.New("tracing: unsupported exporter")
)

// Config describes how spans leave the process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool

	ExporterType string // otlp-http or otlp-grpc
	OTLPEndpoint string // host:port; the exporter default applies when empty
	InsecureMode bool   // plaintext OTLP, for local collectors

	// SamplingRate is the fraction of root spans kept. Child spans follow
	// their parent's decision.
	SamplingRate float64
}

func (c Config) check() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w: got %v", ErrSamplingRate, c.SamplingRate)
	}
	if _, ok := exporters[c.ExporterType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExporter, c.ExporterType)
	}
	return nil
}

type exporterFactory func(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	"":               newHTTPExporter,
	ExporterOTLPHTTP: newHTTPExporter,
	ExporterOTLPGRPC: newGRPCExporter,
}

func newHTTPExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func newGRPCExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	var opts []otlptracegrpc.Option
	if endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Provider owns the SDK tracer provider. The zero value is a disabled
// provider whose Shutdown is a no-op.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// NewProvider installs a global tracer provider and W3C propagators when
// cfg.Enabled is set. A disabled config returns a no-op Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		slog.Info("tracing disabled")
		return &Provider{}, nil
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = DefaultServiceVersion
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterDialTimeout)
	defer cancel()
	exp, err := exporters[cfg.ExporterType](ctx, cfg.OTLPEndpoint, cfg.InsecureMode)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("tracing initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"exporter", cfg.ExporterType,
		"endpoint", cfg.OTLPEndpoint,
		"sampling_rate", cfg.SamplingRate,
	)
	return &Provider{sdk: sdk}, nil
}

// samplerFor honours the parent decision so a sampled upstream request keeps
// its feed spans even at low local rates.
func samplerFor(rate float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(rate)
	switch rate {
	case 1:
		root = sdktrace.AlwaysSample()
	case 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.sdk != nil
}

// Tracer returns a named tracer from this provider, or from the global one
// when tracing is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if !p.Enabled() {
		return otel.Tracer(name)
	}
	return p.sdk.Tracer(name)
}

// Shutdown flushes buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing shutdown: %w", err)
	}
	return nil
}
