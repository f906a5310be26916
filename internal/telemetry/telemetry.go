// Package telemetry wires OpenTelemetry tracing and metrics around
// Memory Kernel operations, gated by OTEL_TRACING_ENABLED so a project
// directory with no collector configured pays no instrumentation cost.
package telemetry

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	serviceName    = "memoryanchor"
	serviceVersion = "1.0.0"
)

var (
	tracer trace.Tracer
	meter  metric.Meter

	operationCounter  metric.Int64Counter
	operationDuration metric.Float64Histogram
	operationErrors   metric.Int64Counter

	// promOperationDuration mirrors operationDuration for deployments
	// scraping a local /metrics endpoint instead of running an OTel
	// collector — the two export paths are independent and either or
	// both may be active at once.
	promOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memoryanchor",
		Name:      "kernel_operation_duration_seconds",
		Help:      "Duration of Memory Kernel operations (add_memory, search_memory, ...).",
	}, []string{"operation", "success"})

	promOperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoryanchor",
		Name:      "kernel_operations_total",
		Help:      "Total Memory Kernel operations by outcome.",
	}, []string{"operation", "success"})
)

// Init initializes OpenTelemetry tracing and metrics when
// OTEL_TRACING_ENABLED=true; otherwise it returns a no-op shutdown.
// Prometheus metrics (promOperationDuration/promOperationTotal) are
// always registered regardless of this flag, since scraping /metrics
// carries no background exporter cost.
func Init(ctx context.Context) (func(), error) {
	if os.Getenv("OTEL_TRACING_ENABLED") != "true" {
		return func() {}, nil
	}

	resource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	)

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(resource),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tracer = otel.Tracer(serviceName)
	meter = otel.Meter(serviceName)

	if err := initMetrics(); err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
	}, nil
}

func initMetrics() error {
	var err error

	operationCounter, err = meter.Int64Counter(
		"kernel_operations_total",
		metric.WithDescription("Total number of Memory Kernel operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	operationDuration, err = meter.Float64Histogram(
		"kernel_operation_duration_seconds",
		metric.WithDescription("Duration of Memory Kernel operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	operationErrors, err = meter.Int64Counter(
		"kernel_operation_errors_total",
		metric.WithDescription("Total number of Memory Kernel operation errors"),
		metric.WithUnit("1"),
	)
	return err
}

// Instrument wraps a Memory Kernel operation (add_memory, search_memory,
// propose_identity_change, ...) with a trace span and duration/error
// metrics, for both the OTel pipeline (when enabled) and Prometheus
// (always).
func Instrument(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if tracer != nil {
		ctx, span = tracer.Start(ctx, operation)
		defer span.End()
		span.SetAttributes(attribute.String("memoryanchor.operation", operation))
	}

	err := fn(ctx)
	duration := time.Since(start)
	success := err == nil

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.message", err.Error()))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Float64("memoryanchor.duration_seconds", duration.Seconds()))
	}

	if operationCounter != nil {
		operationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", success),
		))
	}
	if operationDuration != nil {
		operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", success),
		))
	}
	if !success && operationErrors != nil {
		operationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}

	promOperationDuration.WithLabelValues(operation, strconv.FormatBool(success)).Observe(duration.Seconds())
	promOperationTotal.WithLabelValues(operation, strconv.FormatBool(success)).Inc()

	return err
}

// Tracer returns the global tracer, nil when tracing is disabled.
func Tracer() trace.Tracer { return tracer }

// Meter returns the global meter, nil when tracing is disabled.
func Meter() metric.Meter { return meter }
