package database

import (
	"context"
	"database/sql"
	"fmt"

	"breathing_club_bot/internal/domain"
)

const videoReviewColumns = `id, user_id, video_file_id, promocode_id, is_approved, created_at`

type VideoReviewRepository struct {
	db *DB
}

func NewVideoReviewRepository(db *DB) *VideoReviewRepository {
	return &VideoReviewRepository{db: db}
}

func scanVideoReview(row interface{ Scan(...interface{}) error }) (*domain.VideoReview, error) {
	v := &domain.VideoReview{}
	var promocodeID sql.NullInt64
	if err := row.Scan(&v.ID, &v.UserID, &v.VideoFileID, &promocodeID, &v.IsApproved, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.PromocodeID = int64Ptr(promocodeID)
	return v, nil
}

func (r *VideoReviewRepository) Create(ctx context.Context, review *domain.VideoReview) (bool, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO video_reviews (user_id, video_file_id, promocode_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, created_at`,
		review.UserID, review.VideoFileID, nullInt64(review.PromocodeID),
	).Scan(&review.ID, &review.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка сохранения видео-отзыва: %w", err)
	}
	return true, nil
}

func (r *VideoReviewRepository) GetByUserID(ctx context.Context, userID int64) (*domain.VideoReview, error) {
	query := `SELECT ` + videoReviewColumns + ` FROM video_reviews WHERE user_id = $1`

	v, err := scanVideoReview(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения видео-отзыва: %w", err)
	}
	return v, nil
}

func (r *VideoReviewRepository) Approve(ctx context.Context, id int64) (*domain.VideoReview, error) {
	query := `UPDATE video_reviews SET is_approved = TRUE WHERE id = $1 RETURNING ` + videoReviewColumns

	v, err := scanVideoReview(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка одобрения видео-отзыва: %w", err)
	}
	return v, nil
}
