package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

type Config struct {
	ServiceName string
	Environment string
	// OTLPEndpoint is a gRPC collector address. Empty disables trace export.
	OTLPEndpoint string
	// MetricsPort serves /metrics. Empty disables the listener.
	MetricsPort string
	// SampleRatio is the share of new root traces kept, in [0, 1].
	SampleRatio float64
}

// Providers are the SDK providers Init installed globally.
type Providers struct {
	Meters   *sdkmetric.MeterProvider
	Tracers  *sdktrace.TracerProvider
	Registry *promclient.Registry
	// MetricsAddr is the bound metrics listener address, empty if none.
	MetricsAddr string

	closers []func(context.Context) error
}

// Shutdown flushes spans and stops the metrics listener.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Init installs the meter and tracer providers and the W3C propagator.
// The returned shutdown must run before exit so batched spans are sent.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	p, err := Setup(ctx, cfg)
	if err != nil {
		return func(context.Context) error { return nil }, err
	}
	return p.Shutdown, nil
}

// Setup is Init returning the providers themselves.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	p := &Providers{}
	fail := func(err error) (*Providers, error) {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	p.Registry = promclient.NewRegistry()
	p.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.New(prometheus.WithRegisterer(p.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.Meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.closers = append(p.closers, p.Meters.Shutdown)

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	}
	if cfg.OTLPEndpoint != "" {
		traceExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return fail(fmt.Errorf("failed to create trace exporter: %w", err))
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	p.Tracers = sdktrace.NewTracerProvider(traceOpts...)
	p.closers = append(p.closers, p.Tracers.Shutdown)

	if cfg.MetricsPort != "" {
		if err := p.serveMetrics(cfg.MetricsPort); err != nil {
			return fail(err)
		}
	}

	otel.SetMeterProvider(p.Meters)
	otel.SetTracerProvider(p.Tracers)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.ServiceName).
		Str("metrics_addr", p.MetricsAddr).
		Str("otlp", cfg.OTLPEndpoint).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("OpenTelemetry initialized")
	return p, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// sampler keeps the parent's decision and samples new roots by ratio.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func (p *Providers) serveMetrics(port string) error {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	p.MetricsAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	p.closers = append(p.closers, srv.Shutdown)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}
