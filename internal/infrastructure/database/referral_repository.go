package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
)

type ReferralRepository struct {
	db *DB
}

func NewReferralRepository(db *DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) Create(ctx context.Context, referrerID, referredID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_id) DO NOTHING`,
		referrerID, referredID)
	if err != nil {
		return false, fmt.Errorf("ошибка создания реферала: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GrantBonus помечает бонус выданным и продлевает подписку пригласившего в одной транзакции.
// Условие is_bonus_given = FALSE гарантирует, что бонус выдается один раз даже при гонке.
func (r *ReferralRepository) GrantBonus(ctx context.Context, referredID int64, bonusDays int, now time.Time) (int64, bool, error) {
	var referrerID int64
	var granted bool

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE referrals SET is_bonus_given = TRUE, bonus_given_at = $2
			WHERE referred_id = $1 AND is_bonus_given = FALSE
			RETURNING referrer_id`,
			referredID, now).Scan(&referrerID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := extendSubscription(ctx, tx, referrerID, bonusDays, now); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("ошибка выдачи реферального бонуса: %w", err)
	}
	return referrerID, granted, nil
}

func (r *ReferralRepository) Stats(ctx context.Context, referrerID int64) (*domain.ReferralStats, error) {
	stats := &domain.ReferralStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_bonus_given)
		FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&stats.Invited, &stats.BonusesGiven)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}
	return stats, nil
}
