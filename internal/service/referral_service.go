package service

import (
	"context"
	"time"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

type ReferralService struct {
	repo      domain.ReferralRepository
	subs      domain.SubscriptionRepository
	gate      Gate
	notifier  Notifier
	bonusDays int
	logger    *monitoring.Logger
	now       func() time.Time
}

func NewReferralService(repo domain.ReferralRepository, subs domain.SubscriptionRepository, gate Gate, notifier Notifier, bonusDays int, logger *monitoring.Logger) *ReferralService {
	return &ReferralService{
		repo:      repo,
		subs:      subs,
		gate:      gate,
		notifier:  notifier,
		bonusDays: bonusDays,
		logger:    logger,
		now:       time.Now,
	}
}

// Register регистрирует приглашение. Самоприглашение и повторное приглашение игнорируются.
func (s *ReferralService) Register(ctx context.Context, referrerID, referredID int64) (bool, error) {
	if referrerID == referredID || referrerID <= 0 {
		return false, nil
	}
	return s.repo.Create(ctx, referrerID, referredID)
}

// GrantBonus выдает бонус пригласившему после оплаты приглашенного. Повторный вызов ничего не делает.
// Открытие канала и уведомление выполняются по возможности.
func (s *ReferralService) GrantBonus(ctx context.Context, referredID int64) (bool, error) {
	referrerID, granted, err := s.repo.GrantBonus(ctx, referredID, s.bonusDays, s.now())
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	monitoring.RecordSubscription("referral_bonus")
	log := s.logger.WithUser(ctx, referrerID).WithField("referred_id", referredID)
	log.WithField("days", s.bonusDays).Info("🎁 Реферальный бонус выдан")

	if err := s.gate.Open(ctx, referrerID); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось открыть канал пригласившему")
	}

	sub, err := s.subs.GetByUserID(ctx, referrerID)
	if err != nil {
		log.WithError(err).Warn("Не удалось получить подписку пригласившего")
	}
	if err := s.notifier.ReferralBonusGranted(ctx, referrerID, s.bonusDays, sub); err != nil {
		log.WithError(err).Warn("⚠️ Не удалось уведомить пригласившего")
	}
	return true, nil
}

func (s *ReferralService) Stats(ctx context.Context, referrerID int64) (*domain.ReferralStats, error) {
	return s.repo.Stats(ctx, referrerID)
}
