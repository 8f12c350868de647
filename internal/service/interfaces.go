package service

import (
	"context"

	"breathing_club_bot/internal/domain"
)

// Notifier отправляет пользователям сообщения. Реализуется ботом, ошибки доставки
// оборачивают domain.ErrNotificationDelivery и только логируются.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, userID int64, sub *domain.Subscription) error
	PaymentFailed(ctx context.Context, userID int64) error
	ReferralBonusGranted(ctx context.Context, referrerID int64, bonusDays int, sub *domain.Subscription) error
	SubscriptionExpired(ctx context.Context, userID int64) error
	SubscriptionExpiring(ctx context.Context, userID int64, sub *domain.Subscription) error
	LessonReminder(ctx context.Context, userID int64) error
	UnconvertedReminder(ctx context.Context, userID int64) error
}

// Gate открывает и закрывает доступ к каналу
type Gate interface {
	Open(ctx context.Context, userID int64) error
	Close(ctx context.Context, userID int64) error
}
