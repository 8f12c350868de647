package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/infrastructure/prodamus"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/service"
)

const maxWebhookBody = 1 << 20

// Reconciler применяет событие оплаты к леджеру
type Reconciler interface {
	ReconcileWebhook(ctx context.Context, ev service.WebhookEvent) error
}

// WebhookHandler принимает уведомления Prodamus
type WebhookHandler struct {
	reconciler Reconciler
	secretKey  string
	logger     *monitoring.Logger
}

func NewWebhookHandler(reconciler Reconciler, secretKey string, logger *monitoring.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		secretKey:  secretKey,
		logger:     logger,
	}
}

// SetupRoutes настраивает маршруты вебхука
func (h *WebhookHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/prodamus-webhook", h.HandleWebhook).Methods(http.MethodPost)
}

// HandleWebhook проверяет подпись, разбирает order_id и передает событие в леджер.
// Шлюз повторяет запрос при любом ответе кроме 200, поэтому 500 отдаем только при сбое хранилища.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithContext(ctx)

	ev, err := h.parse(r)
	if err != nil {
		status := statusForError(err)
		monitoring.RecordError(errorType(err), "webhook")
		log.WithError(err).WithField("status", status).Warn("⚠️ Отклонен вебхук Prodamus")
		http.Error(w, http.StatusText(status), status)
		return
	}

	log = log.WithFields(map[string]interface{}{
		"order_id": ev.RawOrderID,
		"status":   ev.Status,
		"user_id":  ev.Order.UserID,
	})
	log.Info("💳 Получен вебхук Prodamus")

	if err := h.reconciler.ReconcileWebhook(ctx, *ev); err != nil {
		monitoring.RecordError("storage", "webhook")
		log.WithError(err).Error("❌ Ошибка обработки вебхука")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *WebhookHandler) parse(r *http.Request) (*service.WebhookEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrMalformedRequest, err)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse form: %v", domain.ErrMalformedRequest, err)
	}

	params := prodamus.FlattenForm(form)
	signature := params[prodamus.SignField]
	if signature == "" {
		signature = r.Header.Get("Sign")
	}
	if !prodamus.Verify(params, h.secretKey, signature) {
		return nil, domain.ErrInvalidSignature
	}

	rawOrderID := params["order_id"]
	if rawOrderID == "" {
		return nil, fmt.Errorf("%w: order_id is missing", domain.ErrMalformedRequest)
	}
	order, err := prodamus.DecodeOrderID(rawOrderID)
	if err != nil {
		return nil, err
	}

	return &service.WebhookEvent{
		RawOrderID:    rawOrderID,
		Order:         order,
		Status:        params["status"],
		PaymentID:     params["payment_id"],
		Sum:           params["sum"],
		CustomerEmail: params["customer_email"],
	}, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMalformedRequest), errors.Is(err, domain.ErrMalformedOrderID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrMalformedOrderID):
		return "malformed_order_id"
	default:
		return "malformed_request"
	}
}
