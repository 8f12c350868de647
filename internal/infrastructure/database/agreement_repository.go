package database

import (
	"context"
	"database/sql"
	"fmt"

	"breathing_club_bot/internal/domain"
)

type AgreementRepository struct {
	db *DB
}

func NewAgreementRepository(db *DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) Get(ctx context.Context, userID int64) (*domain.Agreement, error) {
	a := &domain.Agreement{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, offer_accepted, privacy_accepted, consent_accepted, created_at, updated_at
		FROM agreements WHERE user_id = $1`, userID).Scan(
		&a.UserID, &a.OfferAccepted, &a.PrivacyAccepted, &a.ConsentAccepted, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения согласий: %w", err)
	}
	return a, nil
}

// AcceptAll отмечает все три документа принятыми
func (r *AgreementRepository) AcceptAll(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agreements (user_id, offer_accepted, privacy_accepted, consent_accepted)
		VALUES ($1, TRUE, TRUE, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			offer_accepted = TRUE,
			privacy_accepted = TRUE,
			consent_accepted = TRUE,
			updated_at = NOW()`, userID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения согласий: %w", err)
	}
	return nil
}
