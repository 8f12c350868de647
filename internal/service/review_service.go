package service

import (
	"context"
	"fmt"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// ReviewResult итог отправки видео-отзыва
type ReviewResult struct {
	Review    *domain.VideoReview
	Promocode *domain.Promocode
	Created   bool
}

type ReviewService struct {
	cfg     *config.Config
	reviews domain.VideoReviewRepository
	promos  *PromocodeService
	logger  *monitoring.Logger
}

func NewReviewService(cfg *config.Config, reviews domain.VideoReviewRepository, promos *PromocodeService, logger *monitoring.Logger) *ReviewService {
	return &ReviewService{cfg: cfg, reviews: reviews, promos: promos, logger: logger}
}

// EnsurePromocode создает промокод за видео-отзыв, если его нет
func (s *ReviewService) EnsurePromocode(ctx context.Context) (*domain.Promocode, error) {
	return s.promos.Ensure(ctx, s.cfg.VideoReviewPromo, s.cfg.VideoReviewDiscount)
}

// Submit сохраняет видео-отзыв и возвращает промокод в награду. Повторный отзыв не сохраняется,
// но промокод возвращается снова.
func (s *ReviewService) Submit(ctx context.Context, userID int64, videoFileID string) (*ReviewResult, error) {
	if videoFileID == "" {
		return nil, fmt.Errorf("%w: empty video", domain.ErrMalformedRequest)
	}

	promo, err := s.EnsurePromocode(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.reviews.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ReviewResult{Review: existing, Promocode: promo}, nil
	}

	review := &domain.VideoReview{
		UserID:      userID,
		VideoFileID: videoFileID,
		PromocodeID: &promo.ID,
	}
	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		return nil, err
	}
	if !created {
		// отзыв успел сохраниться параллельно
		if review, err = s.reviews.GetByUserID(ctx, userID); err != nil {
			return nil, err
		}
	}

	s.logger.WithUser(ctx, userID).Info("🎬 Получен видео-отзыв")
	return &ReviewResult{Review: review, Promocode: promo, Created: created}, nil
}

// Approve отмечает отзыв одобренным. nil без ошибки, если отзыва нет.
func (s *ReviewService) Approve(ctx context.Context, reviewID int64) (*domain.VideoReview, error) {
	return s.reviews.Approve(ctx, reviewID)
}
