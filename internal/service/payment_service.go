package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/infrastructure/prodamus"
	"breathing_club_bot/internal/monitoring"
)

const (
	WebhookStatusSuccess = "success"
	WebhookStatusFailed  = "failed"
)

// WebhookEvent уведомление шлюза после проверки подписи и разбора order id
type WebhookEvent struct {
	RawOrderID    string
	Order         prodamus.OrderID
	Status        string
	PaymentID     string
	Sum           string
	CustomerEmail string
}

// PaymentLink ссылка на оплату вместе с рассчитанной суммой
type PaymentLink struct {
	URL     string
	OrderID string
	Tariff  domain.Tariff
	Promo   *PromoResult
	Amount  int64
}

// Invoice данные для нативного счета Telegram
type Invoice struct {
	Payload     string
	Title       string
	Description string
	Tariff      domain.Tariff
	Amount      int64
}

type PaymentService struct {
	cfg       *config.Config
	payments  domain.PaymentRepository
	promos    *PromocodeService
	referrals *ReferralService
	gate      Gate
	notifier  Notifier
	links     *prodamus.LinkBuilder
	logger    *monitoring.Logger
	now       func() time.Time
}

func NewPaymentService(
	cfg *config.Config,
	payments domain.PaymentRepository,
	promos *PromocodeService,
	referrals *ReferralService,
	gate Gate,
	notifier Notifier,
	links *prodamus.LinkBuilder,
	logger *monitoring.Logger,
) *PaymentService {
	return &PaymentService{
		cfg:       cfg,
		payments:  payments,
		promos:    promos,
		referrals: referrals,
		gate:      gate,
		notifier:  notifier,
		links:     links,
		logger:    logger,
		now:       time.Now,
	}
}

// quote считает сумму тарифа с учетом промокода
func (s *PaymentService) quote(ctx context.Context, userID int64, days int, promoCode string) (domain.Tariff, *PromoResult, error) {
	tariff, ok := s.cfg.FindTariff(days)
	if !ok {
		return domain.Tariff{}, nil, fmt.Errorf("%w: %d days", domain.ErrUnknownTariff, days)
	}

	result := &PromoResult{BaseAmount: tariff.Price, FinalAmount: tariff.Price}
	if promoCode != "" {
		var err error
		result, err = s.promos.Apply(ctx, userID, promoCode, tariff.Price)
		if err != nil {
			return domain.Tariff{}, nil, err
		}
	}
	return tariff, result, nil
}

// CreatePaymentLink создает pending-платеж и подписанную ссылку на оплату в шлюзе
func (s *PaymentService) CreatePaymentLink(ctx context.Context, userID int64, days int, promoCode string) (*PaymentLink, error) {
	tariff, promo, err := s.quote(ctx, userID, days, promoCode)
	if err != nil {
		return nil, err
	}

	code := ""
	if promo.Applied() {
		code = promo.Promocode.Code
	}
	orderID, err := prodamus.EncodeOrderID(userID, days, s.now().Unix(), code)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		UserID:           userID,
		Amount:           promo.FinalAmount,
		Currency:         domain.CurrencyRUB,
		SubscriptionDays: days,
		Provider:         domain.PaymentProviderProdamus,
		PaymentID:        orderID,
		Status:           domain.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	monitoring.RecordPayment(string(domain.PaymentStatusPending), string(domain.PaymentProviderProdamus), 0, 0)

	url := s.links.BuildURL(prodamus.PaymentRequest{
		OrderID:     orderID,
		Amount:      promo.FinalAmount,
		ProductName: fmt.Sprintf("%s: %s", s.cfg.ProductName, tariff.Title),
	})

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
		"amount":   promo.FinalAmount,
	}).Info("💳 Создана ссылка на оплату")

	return &PaymentLink{
		URL:     url,
		OrderID: orderID,
		Tariff:  tariff,
		Promo:   promo,
		Amount:  promo.FinalAmount,
	}, nil
}

// CreateInvoice готовит нативный счет Telegram: pending-платеж, payload совпадает с order id
func (s *PaymentService) CreateInvoice(ctx context.Context, userID int64, days int, promoCode string) (*Invoice, error) {
	tariff, promo, err := s.quote(ctx, userID, days, promoCode)
	if err != nil {
		return nil, err
	}

	code := ""
	if promo.Applied() {
		code = promo.Promocode.Code
	}
	// наносекунды, чтобы два счета в одну секунду не совпали по payload
	payload, err := prodamus.EncodeOrderID(userID, days, s.now().UnixNano(), code)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		UserID:           userID,
		Amount:           promo.FinalAmount,
		Currency:         domain.CurrencyRUB,
		SubscriptionDays: days,
		Provider:         domain.PaymentProviderTelegram,
		PaymentID:        payload,
		Status:           domain.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	return &Invoice{
		Payload:     payload,
		Title:       fmt.Sprintf("%s: %s", s.cfg.ProductName, tariff.Title),
		Description: fmt.Sprintf("Доступ к закрытому каналу клуба на %d дней", days),
		Tariff:      tariff,
		Amount:      promo.FinalAmount,
	}, nil
}

// ValidateInvoicePayload проверяет payload перед подтверждением pre-checkout
func (s *PaymentService) ValidateInvoicePayload(userID int64, payload string) error {
	order, err := prodamus.DecodeOrderID(payload)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return fmt.Errorf("%w: payload belongs to user %d", domain.ErrMalformedOrderID, order.UserID)
	}
	if _, ok := s.cfg.FindTariff(order.Days); !ok {
		return fmt.Errorf("%w: %d days", domain.ErrUnknownTariff, order.Days)
	}
	return nil
}

// ReconcileWebhook применяет результат оплаты из шлюза. Возвращаемая ошибка означает сбой хранилища:
// шлюз получит 500 и повторит запрос.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, ev WebhookEvent) error {
	ctx, span := monitoring.StartSpan(ctx, "payment.reconcile_webhook")
	defer span.End()
	monitoring.AddSpanAttributes(span,
		attribute.String("order_id", ev.RawOrderID),
		attribute.String("status", ev.Status),
		attribute.Int64("user_id", ev.Order.UserID),
	)

	amount, err := domain.ParseRubles(ev.Sum)
	if err != nil {
		amount = 0
	}

	payment := &domain.Payment{
		UserID:            ev.Order.UserID,
		Amount:            amount,
		Currency:          domain.CurrencyRUB,
		SubscriptionDays:  ev.Order.Days,
		Provider:          domain.PaymentProviderProdamus,
		PaymentID:         ev.RawOrderID,
		ProviderPaymentID: ev.PaymentID,
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":  ev.Order.UserID,
		"order_id": ev.RawOrderID,
		"status":   ev.Status,
	})

	switch ev.Status {
	case WebhookStatusSuccess:
		err = s.applySuccess(ctx, payment, ev.Order)
	case WebhookStatusFailed:
		err = s.applyFailure(ctx, payment)
	default:
		log.Warn("Неизвестный статус платежа, игнорируем")
		return nil
	}

	if err != nil {
		monitoring.RecordSpanError(span, err)
	}
	return err
}

// ApplyTelegramPayment применяет успешный нативный платеж Telegram тем же путем, что и вебхук
func (s *PaymentService) ApplyTelegramPayment(ctx context.Context, userID int64, payload string, totalAmount int64, chargeID string) error {
	order, err := prodamus.DecodeOrderID(payload)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return fmt.Errorf("%w: payload belongs to user %d", domain.ErrMalformedOrderID, order.UserID)
	}

	payment := &domain.Payment{
		UserID:            userID,
		Amount:            totalAmount,
		Currency:          domain.CurrencyRUB,
		SubscriptionDays:  order.Days,
		Provider:          domain.PaymentProviderTelegram,
		PaymentID:         payload,
		ProviderPaymentID: chargeID,
	}
	return s.applySuccess(ctx, payment, order)
}

func (s *PaymentService) applySuccess(ctx context.Context, payment *domain.Payment, order prodamus.OrderID) error {
	start := s.now()
	log := s.logger.WithUser(ctx, payment.UserID).WithField("order_id", payment.PaymentID)

	sub, applied, err := s.payments.MarkSucceeded(ctx, payment, s.now())
	if err != nil {
		monitoring.RecordError("storage", "payment_service")
		return err
	}
	if !applied {
		log.Info("🔁 Повторное уведомление об уже учтенном платеже")
		monitoring.RecordPayment("duplicate", string(payment.Provider), 0, 0)
		return nil
	}

	monitoring.RecordPayment(string(domain.PaymentStatusSuccess), string(payment.Provider), payment.Amount, s.now().Sub(start))
	monitoring.RecordSubscription("extended")
	log.WithField("expires_at", sub.ExpiresAt).Info("✅ Платеж учтен, подписка продлена")

	// Дальше все по возможности: деньги уже получены
	if order.Promo != "" {
		if err := s.promos.RecordUsage(ctx, payment.UserID, order.Promo); err != nil {
			log.WithError(err).WithField("code", order.Promo).Warn("⚠️ Не удалось записать использование промокода")
		}
	}

	if _, err := s.referrals.GrantBonus(ctx, payment.UserID); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось выдать реферальный бонус")
	}

	if err := s.gate.Open(ctx, payment.UserID); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось открыть доступ к каналу")
	}

	if err := s.notifier.PaymentSucceeded(ctx, payment.UserID, sub); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось отправить подтверждение оплаты")
	}
	return nil
}

func (s *PaymentService) applyFailure(ctx context.Context, payment *domain.Payment) error {
	log := s.logger.WithUser(ctx, payment.UserID).WithField("order_id", payment.PaymentID)

	changed, err := s.payments.MarkFailed(ctx, payment)
	if err != nil {
		monitoring.RecordError("storage", "payment_service")
		return err
	}
	if !changed {
		log.Info("Платеж уже обработан, отказ не применяется")
		return nil
	}
	monitoring.RecordPayment(string(domain.PaymentStatusFailed), string(payment.Provider), 0, 0)
	log.Info("❌ Платеж отклонен")

	if err := s.notifier.PaymentFailed(ctx, payment.UserID); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось уведомить о неуспешной оплате")
	}
	return nil
}
