// Package observability exports recipe operation spans and counters over
// OTLP/gRPC, and wraps the HTTP handler so each request gets a span.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const scope = "github.com/yukinko0825/recipe-site"

// Config selects where telemetry goes. Nothing is exported unless Enabled.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string  // host:port of the collector's gRPC receiver
	Insecure       bool    // plaintext gRPC, for a local collector
	SampleRate     float64 // fraction of root spans kept
}

func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "recipesite",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
	}
}

// Provider records recipe operations. A disabled provider hands out
// non-recording spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer
	ops    *opInstruments
	logger *slog.Logger
}

// opInstruments count and time recipe operations, labelled by name.
type opInstruments struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Provider{
		tracer: noop.NewTracerProvider().Tracer(scope),
		logger: slog.Default().With("component", "observability"),
	}
	if !cfg.Enabled {
		p.logger.DebugContext(ctx, "telemetry export disabled")
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spans),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	p.tracer = p.tp.Tracer(scope, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.ops, err = newOpInstruments(p.mp.Meter(scope))
	if err != nil {
		return nil, fmt.Errorf("recipe instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "telemetry export enabled",
		"endpoint", cfg.OTLPEndpoint, "insecure", cfg.Insecure, "sample_rate", cfg.SampleRate)
	return p, nil
}

func newOpInstruments(m metric.Meter) (*opInstruments, error) {
	calls, err := m.Int64Counter("recipesite.recipe.ops",
		metric.WithDescription("Recipe operations started"), metric.WithUnit("{op}"))
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("recipesite.recipe.failures",
		metric.WithDescription("Recipe operations that returned an error"), metric.WithUnit("{op}"))
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram("recipesite.recipe.latency",
		metric.WithDescription("Recipe operation latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10))
	if err != nil {
		return nil, err
	}
	return &opInstruments{calls: calls, failures: failures, latency: latency}, nil
}

// Shutdown flushes pending spans and metrics. Flush failures are logged,
// not returned, so a missing collector never blocks process exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			p.logger.WarnContext(ctx, "trace flush failed", "error", err)
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			p.logger.WarnContext(ctx, "metric flush failed", "error", err)
		}
	}
	return nil
}

// TrackOperation opens a span named op and returns the finisher the caller
// defers with its result.
func (p *Provider) TrackOperation(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(attrs...))

	labels := metric.WithAttributes(append([]attribute.KeyValue{attribute.String("op", op)}, attrs...)...)
	if p.ops != nil {
		p.ops.calls.Add(ctx, 1, labels)
	}

	return ctx, func(err error) {
		defer span.End()
		if p.ops != nil {
			p.ops.latency.Record(ctx, time.Since(start).Seconds(), labels)
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		if p.ops != nil {
			p.ops.failures.Add(ctx, 1, labels)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware wraps each request in an "http.request" operation tagged with
// its route pattern. Only 5xx responses count as failures.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx, done := p.TrackOperation(r.Context(), "http.request", attribute.String("http.method", r.Method))

		req := r.WithContext(ctx)
		next.ServeHTTP(rec, req)

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("http.status_code", rec.status),
			attribute.String("http.route", req.Pattern),
		)
		var err error
		if rec.status >= http.StatusInternalServerError {
			err = fmt.Errorf("http %d", rec.status)
		}
		done(err)
	})
}
