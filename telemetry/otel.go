package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Global telemetry handles.
var (
	Tracer = otel.Tracer("github.com/yairfalse/lfo")
	Meter  = otel.Meter("github.com/yairfalse/lfo")

	// PrometheusRegistry for pull-based scraping. It exists from
	// startup so the metrics endpoint can serve before (or without)
	// InitOTEL; the OTEL exporter registers itself with it.
	PrometheusRegistry = promclient.NewRegistry()

	ResourcesDiscovered metric.Int64Counter
	SubscriptionErrors  metric.Int64Counter
	RoutesConfigured    metric.Int64Counter
	RoutesSkipped       metric.Int64Counter
	RouteErrors         metric.Int64Counter
	ScaleDecisions      metric.Int64Counter
	DeployChanges       metric.Int64Counter
	DeployFailures      metric.Int64Counter
	CycleDuration       metric.Float64Histogram
	DesiredReplicas     metric.Int64Gauge
)

func init() {
	// Instruments start on the global no-op meter so tasks can record
	// unconditionally; InitOTEL swaps in the real ones.
	_ = initMetrics()
}

// Config for OTEL initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTELEndpoint   string
	Insecure       bool
}

// InitOTEL initializes OpenTelemetry with traces and metrics. The
// returned shutdown flushes both providers.
func InitOTEL(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	cfg = applyConfigDefaults(cfg)

	res, err := createOTELResource(cfg)
	if err != nil {
		return nil, err
	}

	return setupProviders(ctx, cfg, res)
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lfo"
	}
	return cfg
}

func createOTELResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func setupProviders(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	traceShutdown, err := setupTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to setup traces: %w", err)
	}

	metricShutdown, err := setupMetricProvider(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := initMetrics(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return createCombinedShutdown(traceShutdown, metricShutdown), nil
}

func createCombinedShutdown(traceShutdown, metricShutdown func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown failed: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown failed: %w", e)
		}
		return err
	}
}

func setupTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		// No collector configured: keep the no-op global tracer.
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	Tracer = provider.Tracer("github.com/yairfalse/lfo")

	return provider.Shutdown, nil
}

// setupMetricProvider configures dual export: Prometheus for pull-based
// scraping plus OTLP push when a collector endpoint is set.
func setupMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	var readers []sdkmetric.Reader

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(PrometheusRegistry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	readers = append(readers, prometheusExporter)

	if cfg.OTELEndpoint != "" {
		otlpReader, err := createOTLPReader(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric reader: %w", err)
		}
		readers = append(readers, otlpReader)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)

	Meter = provider.Meter("github.com/yairfalse/lfo")

	return provider.Shutdown, nil
}

func createOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	), nil
}

func initMetrics() error {
	var err error

	if ResourcesDiscovered, err = Meter.Int64Counter("lfo.resources.discovered.total",
		metric.WithDescription("Resources discovered across monitored subscriptions"),
	); err != nil {
		return err
	}

	if SubscriptionErrors, err = Meter.Int64Counter("lfo.discovery.subscription_errors.total",
		metric.WithDescription("Subscription-level discovery failures"),
	); err != nil {
		return err
	}

	if RoutesConfigured, err = Meter.Int64Counter("lfo.diagnostics.routes_configured.total",
		metric.WithDescription("Log-routing configurations created or updated"),
	); err != nil {
		return err
	}

	if RoutesSkipped, err = Meter.Int64Counter("lfo.diagnostics.routes_skipped.total",
		metric.WithDescription("Resources skipped as unsupported for log routing"),
	); err != nil {
		return err
	}

	if RouteErrors, err = Meter.Int64Counter("lfo.diagnostics.route_errors.total",
		metric.WithDescription("Per-resource log-routing failures"),
	); err != nil {
		return err
	}

	if ScaleDecisions, err = Meter.Int64Counter("lfo.scaling.decisions.total",
		metric.WithDescription("Scaling cycles that produced a topology"),
	); err != nil {
		return err
	}

	if DeployChanges, err = Meter.Int64Counter("lfo.deployer.changes.total",
		metric.WithDescription("Forwarder units created, updated, or removed"),
	); err != nil {
		return err
	}

	if DeployFailures, err = Meter.Int64Counter("lfo.deployer.failures.total",
		metric.WithDescription("Failed deployer reconciliations"),
	); err != nil {
		return err
	}

	if CycleDuration, err = Meter.Float64Histogram("lfo.cycle.duration.ms",
		metric.WithDescription("Task cycle duration in milliseconds"),
	); err != nil {
		return err
	}

	if DesiredReplicas, err = Meter.Int64Gauge("lfo.topology.desired_replicas",
		metric.WithDescription("Total desired forwarder replicas in the current topology"),
	); err != nil {
		return err
	}

	return nil
}
