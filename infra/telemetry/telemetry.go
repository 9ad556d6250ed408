package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/guildview/panel-service/config"
)

// ServiceName is the resource identity every span and log record
// carries. The otelslog bridge in the logging provider uses it too.
const ServiceName = "guildview-panel"

// BuildInfo carries the ldflags-stamped identity of this binary.
// Supplied by the CLI layer.
type BuildInfo struct {
	Version string
}

// Telemetry owns the OTLP trace and log providers. Disabled by default:
// when off, Start is a no-op and the otel globals stay no-op, so
// instrumented code paths cost nothing.
type Telemetry struct {
	cfg    config.TelemetryConfig
	env    string
	info   BuildInfo
	logger *slog.Logger

	traces *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

func New(cfg *config.Config, info BuildInfo, logger *slog.Logger) *Telemetry {
	return &Telemetry{cfg: cfg.Telemetry, env: cfg.Service.Env, info: info, logger: logger}
}

// Start builds both providers and installs them globally. The exporter
// connection is lazy, so a collector that is still coming up does not
// fail startup; undeliverable batches are dropped by the SDK.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}

	res, err := t.buildResource()
	if err != nil {
		return fmt.Errorf("build telemetry resource: %w", err)
	}

	// The collector is assumed to be a local sidecar or on a trusted
	// network segment.
	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(t.cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("open trace exporter: %w", err)
	}
	t.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.cfg.SampleRatio))),
	)
	otel.SetTracerProvider(t.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	logExp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(t.cfg.Endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("open log exporter: %w", err)
	}
	t.logs = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	// The slog bridge handler was built against the global provider;
	// from here on its records flow to the collector.
	global.SetLoggerProvider(t.logs)

	t.logger.Info("telemetry started",
		"endpoint", t.cfg.Endpoint, "sample_ratio", t.cfg.SampleRatio)
	return nil
}

// Stop flushes and shuts both providers down.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.traces != nil {
		errs = append(errs, t.traces.Shutdown(ctx))
	}
	if t.logs != nil {
		errs = append(errs, t.logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) buildResource() (*resource.Resource, error) {
	// Schemaless, so the merge cannot conflict with the schema URL the
	// SDK's default resource carries.
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(t.info.Version),
		semconv.DeploymentEnvironment(t.env),
	))
}
