package observe

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "respire".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded (so trace IDs reach the diagnostics log) but not exported.
	TraceExporter sdktrace.SpanExporter
}

func (cfg ProviderConfig) resource() (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "respire"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}

func newTracerProvider(cfg ProviderConfig, res *resource.Resource) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if cfg.TraceExporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// InitTracing installs only the global [sdktrace.TracerProvider]. Use it
// when no metrics endpoint is served.
func InitTracing(cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}
	tp := newTracerProvider(cfg, res)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// InitProvider installs the global providers:
//
//   - a [sdkmetric.MeterProvider] backed by a Prometheus exporter registered
//     on the default Prometheus registry, so [Handler] serves every
//     instrument;
//   - a [sdktrace.TracerProvider] as in [InitTracing].
//
// The returned function flushes and shuts both down.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tp := newTracerProvider(cfg, res)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}

// Handler serves the default Prometheus registry in text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
