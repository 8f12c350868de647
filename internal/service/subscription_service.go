package service

import (
	"context"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// Account данные для экрана "Моя подписка"
type Account struct {
	Subscription *domain.Subscription
	Payments     []*domain.Payment
	DaysLeft     int
	Active       bool
}

type SubscriptionService struct {
	repo     domain.SubscriptionRepository
	payments domain.PaymentRepository
	gate     Gate
	logger   *monitoring.Logger
	now      func() time.Time
}

func NewSubscriptionService(repo domain.SubscriptionRepository, payments domain.PaymentRepository, gate Gate, logger *monitoring.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		payments: payments,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

// GetUserSubscription получает подписку пользователя
func (s *SubscriptionService) GetUserSubscription(ctx context.Context, userID int64) (*domain.Subscription, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// HasActive проверяет, что подписка активна и не истекла
func (s *SubscriptionService) HasActive(ctx context.Context, userID int64) (bool, error) {
	return s.repo.HasActive(ctx, userID, s.now())
}

// Account собирает подписку и последние платежи
func (s *SubscriptionService) Account(ctx context.Context, userID int64) (*Account, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByUser(ctx, userID, 5)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Account{
		Subscription: sub,
		Payments:     payments,
		DaysLeft:     sub.DaysLeft(now),
		Active:       sub.IsValid(now),
	}, nil
}

// Grant продлевает подписку вручную (команда администратора) и открывает доступ к каналу
func (s *SubscriptionService) Grant(ctx context.Context, userID int64, days int) (*domain.Subscription, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	sub, err := s.repo.Extend(ctx, userID, days, s.now())
	if err != nil {
		return nil, err
	}
	monitoring.RecordSubscription("granted")

	if err := s.gate.Open(ctx, userID); err != nil {
		s.logger.WithUser(ctx, userID).WithError(err).Warn("⚠️ Не удалось открыть доступ к каналу")
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":    userID,
		"days":       days,
		"expires_at": sub.ExpiresAt,
	}).Info("🎁 Подписка выдана вручную")
	return sub, nil
}
