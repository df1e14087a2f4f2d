package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"corrflow/internal/config"
)

// Telemetry owns the trace and metric providers plus the workflow counters
// recorded by the engine's HTTP surface.
type Telemetry struct {
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	config         config.TelemetryConfig

	MinutesRecorded   metric.Int64Counter
	ConflictsRetried  metric.Int64Counter
	TreatmentsCreated metric.Int64Counter
}

// New wires OTLP trace export and an in-process meter provider. With
// telemetry disabled the instruments still work against the global no-op
// providers.
func New(cfg config.TelemetryConfig) (*Telemetry, error) {
	t := &Telemetry{config: cfg}

	if cfg.Enabled && cfg.ExporterURL != "" {
		res := resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		)

		exporter, err := createTraceExporter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		t.tracerProvider = trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
			trace.WithSampler(trace.TraceIDRatioBased(cfg.SamplingRatio)),
		)
		t.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

		otel.SetTracerProvider(t.tracerProvider)
		otel.SetMeterProvider(t.meterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		slog.Info("Telemetry initialized",
			"service", cfg.ServiceName,
			"endpoint", cfg.ExporterURL,
			"sampling_ratio", cfg.SamplingRatio,
		)
	} else {
		slog.Info("Telemetry disabled or no exporter URL provided")
	}

	meter := otel.Meter(cfg.ServiceName)
	var err error
	if t.MinutesRecorded, err = meter.Int64Counter("corrflow.minutes.recorded"); err != nil {
		return nil, fmt.Errorf("failed to create minute counter: %w", err)
	}
	if t.ConflictsRetried, err = meter.Int64Counter("corrflow.conflicts.retried"); err != nil {
		return nil, fmt.Errorf("failed to create conflict counter: %w", err)
	}
	if t.TreatmentsCreated, err = meter.Int64Counter("corrflow.treatments.created"); err != nil {
		return nil, fmt.Errorf("failed to create treatment counter: %w", err)
	}
	return t, nil
}

func createTraceExporter(cfg config.TelemetryConfig) (trace.SpanExporter, error) {
	endpoint := strings.TrimPrefix(cfg.ExporterURL, "grpc://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return otlptracegrpc.New(ctx, opts...)
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
