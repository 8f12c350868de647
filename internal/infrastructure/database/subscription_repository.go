package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
)

const subscriptionColumns = `id, user_id, expires_at, tariff_days, is_active, created_at, updated_at`

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row interface{ Scan(...interface{}) error }) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.TariffDays, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подписки: %w", err)
	}
	return s, nil
}

// Extend продлевает подписку одним upsert-запросом: к будущей дате добавляются дни,
// истекшая отсчитывается от now.
func (r *SubscriptionRepository) Extend(ctx context.Context, userID int64, days int, now time.Time) (*domain.Subscription, error) {
	s, err := extendSubscription(ctx, r.db, userID, days, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка продления подписки: %w", err)
	}
	return s, nil
}

func extendSubscription(ctx context.Context, q queryer, userID int64, days int, now time.Time) (*domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, expires_at, tariff_days, is_active, created_at, updated_at)
		VALUES ($1, $2::timestamptz + make_interval(days => $3::int), $3::int, TRUE, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			expires_at = GREATEST(subscriptions.expires_at, $2::timestamptz) + make_interval(days => $3::int),
			tariff_days = EXCLUDED.tariff_days,
			is_active = TRUE,
			updated_at = $2
		RETURNING ` + subscriptionColumns

	return scanSubscription(q.QueryRowContext(ctx, query, userID, now, days))
}

func (r *SubscriptionRepository) listWhere(ctx context.Context, where string, args ...interface{}) ([]*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE ` + where + ` ORDER BY expires_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ListExpired возвращает активные подписки с истекшим сроком
func (r *SubscriptionRepository) ListExpired(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	subs, err := r.listWhere(ctx, `is_active = TRUE AND expires_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истекших подписок: %w", err)
	}
	return subs, nil
}

// ListExpiringBetween возвращает активные подписки, истекающие в [from, to)
func (r *SubscriptionRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*domain.Subscription, error) {
	subs, err := r.listWhere(ctx, `is_active = TRUE AND expires_at >= $1 AND expires_at < $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истекающих подписок: %w", err)
	}
	return subs, nil
}

// Deactivate повторно проверяет срок: продленная после ListExpired подписка не затрагивается
func (r *SubscriptionRepository) Deactivate(ctx context.Context, userID int64, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active = TRUE AND expires_at < $2`, userID, now)
	if err != nil {
		return false, fmt.Errorf("ошибка деактивации подписки: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SubscriptionRepository) HasActive(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2)`,
		userID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки подписки: %w", err)
	}
	return exists, nil
}
