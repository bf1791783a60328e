// Package telemetry sets up OpenTelemetry export for the monitor and the
// viewer, and defines the instruments recorded by the monitor loop.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// DefaultExportInterval is used when Config.ExportInterval is not positive.
const DefaultExportInterval = 15 * time.Second

// Config describes where and how telemetry is exported.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string
	// Insecure disables TLS to the collector.
	Insecure bool

	// ExportInterval is the period between metric exports. The monitor
	// sets it to its cycle interval.
	ExportInterval time.Duration

	// SampleRatio is the fraction of root traces kept, in [0,1].
	// Zero means every trace.
	SampleRatio float64
}

// Provider exposes the tracer and meter for one service. When export is
// disabled the SDK providers are nil and the globals are noops.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
}

// Shutdown flushes pending spans and metrics. Both providers are always
// shut down.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	if p.TracerProvider != nil {
		err = multierr.Append(err, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		err = multierr.Append(err, p.MeterProvider.Shutdown(ctx))
	}
	return err
}

// Init installs global trace and meter providers exporting to cfg.Endpoint.
// The returned Provider must be shut down on exit.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			Tracer: otel.Tracer(cfg.ServiceName),
			Meter:  otel.Meter(cfg.ServiceName),
		}, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	spans, err := otlptracegrpc.New(ctx, traceOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOptions(cfg)...)
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("creating metric exporter: %w", err),
			spans.Shutdown(ctx),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics,
			sdkmetric.WithInterval(ExportInterval(cfg.ExportInterval)),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(cfg.ServiceName),
		Meter:          mp.Meter(cfg.ServiceName),
	}, nil
}

// Sampler keeps the parent's decision and samples root spans at ratio.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// ExportInterval returns d, or DefaultExportInterval when d is not positive.
func ExportInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultExportInterval
	}
	return d
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

func traceOptions(cfg Config) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricOptions(cfg Config) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}
