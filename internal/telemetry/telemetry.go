package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/goonbox/plexcord"

// Config controls the telemetry provider. Traces and metrics are exported only when OTLPEndpoint is set.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
}

// Provider owns the tracer and the notification counters.
type Provider struct {
	tracer        trace.Tracer
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider

	webhooksReceived metric.Int64Counter
	webhooksIgnored  metric.Int64Counter
	deliveries       metric.Int64Counter
	deliveryFailures metric.Int64Counter
	deliveryDuration metric.Float64Histogram
}

// New creates a provider. Without an endpoint spans and metrics go to no-op providers.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.OTLPEndpoint == "" {
		return NewWithTracerProvider(noop.NewTracerProvider())
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(endpointOption(cfg.OTLPEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricEndpointOption(cfg.OTLPEndpoint))
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	p, err := NewWithProviders(tracerProvider, meterProvider)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}
	p.traceProvider = tracerProvider
	p.meterProvider = meterProvider
	return p, nil
}

// NewWithTracerProvider creates a provider that traces through tp.
// Metrics go to the global meter provider.
func NewWithTracerProvider(tp trace.TracerProvider) (*Provider, error) {
	return NewWithProviders(tp, otel.GetMeterProvider())
}

// NewWithProviders creates a provider that traces through tp and records metrics through mp.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*Provider, error) {
	p := &Provider{
		tracer: tp.Tracer(instrumentationName, trace.WithSchemaURL(semconv.SchemaURL)),
	}
	if err := p.initMetrics(mp.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return p, nil
}

// endpointOption accepts both a full URL and a bare host:port.
func endpointOption(endpoint string) otlptracehttp.Option {
	if strings.Contains(endpoint, "://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

func metricEndpointOption(endpoint string) otlpmetrichttp.Option {
	if strings.Contains(endpoint, "://") {
		return otlpmetrichttp.WithEndpointURL(endpoint)
	}
	return otlpmetrichttp.WithEndpoint(endpoint)
}

func (p *Provider) initMetrics(meter metric.Meter) error {
	var err error

	p.webhooksReceived, err = meter.Int64Counter(
		"plexcord_webhooks_received_total",
		metric.WithDescription("Plex webhooks received"),
	)
	if err != nil {
		return fmt.Errorf("create webhooks_received counter: %w", err)
	}

	p.webhooksIgnored, err = meter.Int64Counter(
		"plexcord_webhooks_ignored_total",
		metric.WithDescription("Plex webhooks acknowledged without a notification"),
	)
	if err != nil {
		return fmt.Errorf("create webhooks_ignored counter: %w", err)
	}

	p.deliveries, err = meter.Int64Counter(
		"plexcord_notifications_delivered_total",
		metric.WithDescription("Notifications delivered to the chat platform"),
	)
	if err != nil {
		return fmt.Errorf("create notifications_delivered counter: %w", err)
	}

	p.deliveryFailures, err = meter.Int64Counter(
		"plexcord_notifications_failed_total",
		metric.WithDescription("Notifications the chat platform did not accept"),
	)
	if err != nil {
		return fmt.Errorf("create notifications_failed counter: %w", err)
	}

	p.deliveryDuration, err = meter.Float64Histogram(
		"plexcord_delivery_duration_seconds",
		metric.WithDescription("Time from enqueue to delivery outcome"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create delivery_duration histogram: %w", err)
	}

	return nil
}

// StartSpan starts an internal span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordReceived counts an inbound webhook.
func (p *Provider) RecordReceived(ctx context.Context, event string) {
	p.webhooksReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordIgnored counts a webhook that did not produce a notification.
func (p *Provider) RecordIgnored(ctx context.Context, event string) {
	p.webhooksIgnored.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordDelivered counts a successful send.
func (p *Provider) RecordDelivered(ctx context.Context, backend string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", "success"),
	)
	p.deliveries.Add(ctx, 1, attrs)
	p.deliveryDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFailed counts a failed send, tagged with a short error kind.
func (p *Provider) RecordFailed(ctx context.Context, backend string, d time.Duration, kind string) {
	p.deliveryFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("error_type", kind),
	))
	p.deliveryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", "error"),
	))
}

// SetSpanError records err on span.
func SetSpanError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks span as successful.
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traceProvider != nil {
		if err := p.traceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
