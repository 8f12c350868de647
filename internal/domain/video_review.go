package domain

import (
	"context"
	"time"
)

// VideoReview видео-отзыв пользователя, за который выдается промокод
type VideoReview struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	VideoFileID string    `json:"video_file_id"`
	PromocodeID *int64    `json:"promocode_id,omitempty"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at"`
}

type VideoReviewRepository interface {
	// Create сохраняет отзыв. Второй отзыв от того же пользователя не сохраняется (false).
	Create(ctx context.Context, review *VideoReview) (bool, error)
	GetByUserID(ctx context.Context, userID int64) (*VideoReview, error)
	Approve(ctx context.Context, id int64) (*VideoReview, error)
}
