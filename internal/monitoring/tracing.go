package monitoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("breathing_club_bot")

// TracingConfig параметры экспорта спанов в Jaeger
type TracingConfig struct {
	ServiceName string
	Version     string
	Env         string
	// Endpoint коллектора; пустой означает OTEL_EXPORTER_JAEGER_ENDPOINT или localhost
	Endpoint string
	// SampleRatio доля трасс, которые пишутся. 0 или больше 1 означает все.
	SampleRatio float64
}

// InitTracing регистрирует глобальный TracerProvider. Остановить его нужно через ShutdownTracing.
func InitTracing(cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	var opts []jaeger.CollectorEndpointOption
	if cfg.Endpoint != "" {
		opts = append(opts, jaeger.WithEndpoint(cfg.Endpoint))
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// ShutdownTracing отправляет накопленные спаны, не дольше timeout
func ShutdownTracing(tp *sdktrace.TracerProvider, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return tp.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

func AddSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordSpanError пишет ошибку в спан и переводит его в статус Error. nil игнорируется.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func RecordSpanDuration(span trace.Span, start time.Time) {
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
}
