package monitoring

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type Logger struct {
	*logrus.Logger
}

type Fields map[string]interface{}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// NewLogger создает логгер: JSON в production, текст в остальных окружениях
func NewLogger(env, level string) *Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return &Logger{logger}
}

// NewNopLogger логгер для тестов, ничего не пишет
func NewNopLogger() *Logger {
	logger := logrus.New()
	logger.SetOutput(discard{})
	return &Logger{logger}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithContext(ctx)

	// Добавляем trace_id и request_id если есть
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// WithUser то же, что WithContext, плюс user_id
func (l *Logger) WithUser(ctx context.Context, userID int64) *logrus.Entry {
	return l.WithContext(ctx).WithField("user_id", userID)
}

func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

// ContextWithRequestID кладет идентификатор запроса в контекст
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
