package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Платежи
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payments",
		},
		[]string{"status", "provider"}, // success, failed, pending, duplicate; prodamus, telegram
	)

	paymentAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_amount_kopecks_total",
			Help: "Total payment amount in kopecks",
		},
		[]string{"status", "provider"},
	)

	paymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_duration_seconds",
			Help:    "Payment processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)

	// Подписки
	subscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Total number of subscription changes",
		},
		[]string{"action"}, // extended, referral_bonus, expired
	)

	// Планировщик
	schedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total number of scheduler job runs",
		},
		[]string{"job", "status"},
	)

	schedulerJobItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_items_total",
			Help: "Rows handled by scheduler jobs",
		},
		[]string{"job", "result"}, // done, skipped, failed
	)

	// Канал
	channelGateOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_gate_operations_total",
			Help: "Channel open/close operations",
		},
		[]string{"operation", "status"},
	)

	// Telegram бот метрики
	telegramUpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_received_total",
			Help: "Total number of Telegram updates received",
		},
		[]string{"update_type"}, // message, callback, pre_checkout
	)

	telegramMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_messages_sent_total",
			Help: "Total number of Telegram messages sent",
		},
		[]string{"message_type", "status"},
	)

	// Активные пользователи (текущие сессии)
	activeTelegramUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telegram_active_users",
			Help: "Number of currently active Telegram users",
		},
	)

	// Ошибки
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// HTTP метрики
func RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Платежи
func RecordPayment(status, provider string, amount int64, duration time.Duration) {
	paymentsTotal.WithLabelValues(status, provider).Inc()
	paymentAmount.WithLabelValues(status, provider).Add(float64(amount))
	paymentDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Подписки
func RecordSubscription(action string) {
	subscriptionsTotal.WithLabelValues(action).Inc()
}

// Планировщик
func RecordSchedulerRun(job, status string) {
	schedulerJobRuns.WithLabelValues(job, status).Inc()
}

func RecordSchedulerItem(job, result string) {
	schedulerJobItems.WithLabelValues(job, result).Inc()
}

// Канал
func RecordChannelGate(operation, status string) {
	channelGateOperations.WithLabelValues(operation, status).Inc()
}

// Telegram бот
func RecordTelegramUpdate(updateType string) {
	telegramUpdatesReceived.WithLabelValues(updateType).Inc()
}

func RecordTelegramMessageSent(messageType, status string) {
	telegramMessagesSent.WithLabelValues(messageType, status).Inc()
}

// Активные пользователи Telegram
func SetActiveTelegramUsers(count int) {
	activeTelegramUsers.Set(float64(count))
}

// Ошибки
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
