package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"ошибка", errors.New("db down"), codes.Error},
		{"без ошибки", nil, codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, span := tp.Tracer("test").Start(context.Background(), "job")
			RecordSpanError(span, tt.err)
			RecordSpanDuration(span, time.Now().Add(-time.Second))
			span.End()

			ended := recorder.Ended()
			got := ended[len(ended)-1]
			if got.Status().Code != tt.want {
				t.Errorf("status = %v, want %v", got.Status().Code, tt.want)
			}

			var hasDuration bool
			for _, attr := range got.Attributes() {
				if attr.Key == "duration_ms" && attr.Value.AsInt64() >= 1000 {
					hasDuration = true
				}
			}
			if !hasDuration {
				t.Error("duration_ms не записан")
			}
		})
	}
}
