package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "flagbase"
	tracerName = "flagbase"
)

// OTelProvider implements Provider using OpenTelemetry
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	pollCycles   metric.Int64Counter
	pollDuration metric.Float64Histogram
	pollFaults   metric.Int64Counter
	cachedFlags  metric.Int64ObservableGauge
	workerState  metric.Int64ObservableGauge
	registration metric.Registration

	// Read from the gauge callbacks.
	lastFlagCount atomic.Int64
	running       atomic.Bool
}

// Option configures an OTelProvider.
type Option func(*OTelProvider)

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *OTelProvider) {
		o.meter = mp.Meter(meterName)
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *OTelProvider) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// NewOTel creates a new OpenTelemetry provider
func NewOTel(opts ...Option) (*OTelProvider, error) {
	provider := &OTelProvider{
		tracer: otel.Tracer(tracerName),
		meter:  otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(provider)
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}

	return provider, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.pollCycles, err = o.meter.Int64Counter(
		"flagbase.poll.cycles",
		metric.WithDescription("Number of completed poll cycles by outcome"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	o.pollDuration, err = o.meter.Float64Histogram(
		"flagbase.poll.duration",
		metric.WithDescription("Duration of poll cycles"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.pollFaults, err = o.meter.Int64Counter(
		"flagbase.poll.faults",
		metric.WithDescription("Number of transient poll faults by kind"),
		metric.WithUnit("{fault}"),
	)
	if err != nil {
		return err
	}

	o.cachedFlags, err = o.meter.Int64ObservableGauge(
		"flagbase.cache.flags",
		metric.WithDescription("Flags in the snapshot of the last full fetch"),
		metric.WithUnit("{flag}"),
	)
	if err != nil {
		return err
	}

	o.workerState, err = o.meter.Int64ObservableGauge(
		"flagbase.poller.running",
		metric.WithDescription("Poller worker state (0=stopped, 1=running)"),
	)
	if err != nil {
		return err
	}

	o.registration, err = o.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(o.cachedFlags, o.lastFlagCount.Load())
		var state int64
		if o.running.Load() {
			state = 1
		}
		obs.ObserveInt64(o.workerState, state)
		return nil
	}, o.cachedFlags, o.workerState)

	return err
}

// StartSpan creates a new trace span
func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	otelAttrs := make([]attribute.KeyValue, len(config.Attributes))
	for i, attr := range config.Attributes {
		otelAttrs[i] = convertAttribute(attr)
	}

	ctx, otelSpan := o.tracer.Start(ctx, name, trace.WithAttributes(otelAttrs...))

	return ctx, &OTelSpan{span: otelSpan}
}

// RecordPoll records one completed poll cycle.
func (o *OTelProvider) RecordPoll(ctx context.Context, outcome string, duration time.Duration, flagCount int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	o.pollCycles.Add(ctx, 1, attrs)
	o.pollDuration.Record(ctx, float64(duration.Milliseconds()), attrs)

	if outcome == OutcomeFull {
		o.lastFlagCount.Store(int64(flagCount))
	}
}

// RecordFault records one transient fault.
func (o *OTelProvider) RecordFault(ctx context.Context, kind string, statusCode int) {
	o.pollFaults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fault.kind", kind),
		attribute.Int("http.status_code", statusCode),
	))
}

// RecordWorkerState records whether the poller worker is alive.
func (o *OTelProvider) RecordWorkerState(running bool) {
	o.running.Store(running)
}

// Shutdown unregisters the gauge callback. Exporter shutdown belongs to
// whoever owns the SDK providers.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	if o.registration != nil {
		return o.registration.Unregister()
	}
	return nil
}

func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

// OTelSpan wraps an OpenTelemetry span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() {
	s.span.End()
}

func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.SetAttributes(otelAttrs...)
}

// RecordError records err and marks the span failed.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}
