package service

import (
	"context"
	"errors"
	"fmt"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// PromoResult итог применения промокода. Если Reason не nil, скидки нет и FinalAmount == BaseAmount.
type PromoResult struct {
	Promocode   *domain.Promocode
	BaseAmount  int64
	FinalAmount int64
	Reason      error
}

// Applied проверяет, была ли применена скидка
func (r *PromoResult) Applied() bool {
	return r.Promocode != nil && r.Reason == nil
}

type PromocodeService struct {
	repo   domain.PromocodeRepository
	logger *monitoring.Logger
}

func NewPromocodeService(repo domain.PromocodeRepository, logger *monitoring.Logger) *PromocodeService {
	return &PromocodeService{repo: repo, logger: logger}
}

// Apply проверяет промокод и считает сумму со скидкой. Использование здесь не записывается:
// оно фиксируется только после успешной оплаты.
func (s *PromocodeService) Apply(ctx context.Context, userID int64, code string, baseAmount int64) (*PromoResult, error) {
	result := &PromoResult{BaseAmount: baseAmount, FinalAmount: baseAmount}
	log := s.logger.WithUser(ctx, userID).WithField("code", code)

	code = domain.NormalizePromocode(code)
	if !domain.ValidPromocode(code) {
		result.Reason = domain.ErrPromocodeInvalid
		return result, nil
	}

	promo, err := s.repo.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		log.Warn("Промокод не найден или неактивен")
		result.Reason = domain.ErrPromocodeNotFound
		return result, nil
	}

	used, err := s.repo.HasUsage(ctx, userID, promo.ID)
	if err != nil {
		return nil, err
	}
	if used {
		log.Warn("Промокод уже использован пользователем")
		result.Reason = domain.ErrPromocodeAlreadyUsed
		return result, nil
	}

	if promo.Exhausted() {
		log.Warn("Лимит использований промокода исчерпан")
		result.Reason = domain.ErrPromocodeExhausted
		return result, nil
	}

	result.Promocode = promo
	result.FinalAmount = promo.ApplyDiscount(baseAmount)
	log.WithField("final_amount", result.FinalAmount).Info("🏷 Промокод применен")
	return result, nil
}

// RecordUsage фиксирует использование промокода по коду из order id. Скидка повторно не проверяется.
func (s *PromocodeService) RecordUsage(ctx context.Context, userID int64, code string) error {
	code = domain.NormalizePromocode(code)
	promo, err := s.repo.GetActiveByCode(ctx, code)
	if err != nil {
		return err
	}
	if promo == nil {
		return fmt.Errorf("%w: %s", domain.ErrPromocodeNotFound, code)
	}

	recorded, err := s.repo.RecordUsage(ctx, userID, promo.ID)
	if err != nil {
		return err
	}
	if !recorded {
		s.logger.WithUser(ctx, userID).WithField("code", code).Info("Использование промокода уже записано")
	}
	return nil
}

// Create создает промокод от имени администратора
func (s *PromocodeService) Create(ctx context.Context, code string, discount int64, maxUses *int) (*domain.Promocode, error) {
	code = domain.NormalizePromocode(code)
	if !domain.ValidPromocode(code) {
		return nil, domain.ErrPromocodeInvalid
	}
	if discount <= 0 {
		return nil, fmt.Errorf("discount must be positive")
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, fmt.Errorf("max uses must be positive")
	}

	promo := &domain.Promocode{
		Code:           code,
		DiscountAmount: discount,
		IsActive:       true,
		MaxUses:        maxUses,
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		if errors.Is(err, domain.ErrPromocodeExists) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка создания промокода: %w", err)
	}
	return promo, nil
}

// Ensure создает служебный промокод при старте, если его еще нет
func (s *PromocodeService) Ensure(ctx context.Context, code string, discount int64) (*domain.Promocode, error) {
	code = domain.NormalizePromocode(code)
	if !domain.ValidPromocode(code) {
		return nil, fmt.Errorf("%w: %q", domain.ErrPromocodeInvalid, code)
	}
	return s.repo.Ensure(ctx, &domain.Promocode{Code: code, DiscountAmount: discount, IsActive: true})
}
