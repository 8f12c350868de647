package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"breathing_club_bot/internal/domain"
)

// ReportRepository отчеты для админ-панели. Строки сканируются в структуры через sqlx.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: sqlx.NewDb(db.DB, "postgres")}
}

func (r *ReportRepository) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM subscriptions WHERE is_active AND expires_at > $1) AS active_subscriptions,
			(SELECT COUNT(*) FROM payments WHERE status = 'success') AS successful_payments,
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'success') AS revenue,
			(SELECT COUNT(*) FROM lesson_progress WHERE first_lesson_started_at IS NOT NULL) AS lessons_started,
			(SELECT COUNT(*) FROM referrals) AS referrals`

	var stats domain.Stats
	if err := r.db.GetContext(ctx, &stats, query, now); err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &stats, nil
}

// Subscribers возвращает подписчиков с суммой успешных оплат. limit <= 0 означает без ограничения.
func (r *ReportRepository) Subscribers(ctx context.Context, onlyActive bool, limit int) ([]domain.SubscriberRow, error) {
	query := `
		SELECT s.user_id, u.username, u.first_name, u.last_name, s.expires_at, s.tariff_days, s.is_active,
			COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.user_id = s.user_id AND p.status = 'success'), 0) AS total_paid
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE ($1 = FALSE OR s.is_active)
		ORDER BY s.expires_at DESC`

	args := []interface{}{onlyActive}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []domain.SubscriberRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ошибка выгрузки подписчиков: %w", err)
	}
	return rows, nil
}
