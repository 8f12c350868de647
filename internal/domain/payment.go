package domain

import (
	"context"
	"time"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentProvider платежный провайдер
type PaymentProvider string

const (
	PaymentProviderProdamus PaymentProvider = "prodamus"
	PaymentProviderTelegram PaymentProvider = "telegram"
)

// CurrencyRUB единственная валюта клуба
const CurrencyRUB = "RUB"

// Payment запись о попытке оплаты. Amount хранится в копейках,
// PaymentID совпадает с order id и уникален.
type Payment struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	SubscriptionDays  int             `json:"subscription_days"`
	Provider          PaymentProvider `json:"payment_provider"`
	PaymentID         string          `json:"payment_id"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	// MarkSucceeded переводит платеж в success (или создает успешную запись, если ее нет) и в той же
	// транзакции продлевает подписку на payment.SubscriptionDays. applied=false означает повторную
	// доставку уже учтенного платежа: подписка тогда не трогается и sub=nil.
	MarkSucceeded(ctx context.Context, payment *Payment, now time.Time) (sub *Subscription, applied bool, err error)
	// MarkFailed помечает неуспешный платеж (создает запись, если ее нет). Меняется только pending,
	// changed=false для успешного или уже отклоненного платежа.
	MarkFailed(ctx context.Context, payment *Payment) (changed bool, err error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Payment, error)
}
