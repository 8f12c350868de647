package domain

import (
	"context"
	"time"
)

// Stats сводная статистика для админ-панели
type Stats struct {
	Users               int   `db:"users" json:"users"`
	ActiveSubscriptions int   `db:"active_subscriptions" json:"active_subscriptions"`
	SuccessfulPayments  int   `db:"successful_payments" json:"successful_payments"`
	Revenue             int64 `db:"revenue" json:"revenue"`
	LessonsStarted      int   `db:"lessons_started" json:"lessons_started"`
	Referrals           int   `db:"referrals" json:"referrals"`
}

// SubscriberRow строка выгрузки подписчиков
type SubscriberRow struct {
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	ExpiresAt  time.Time `db:"expires_at"`
	TariffDays int       `db:"tariff_days"`
	IsActive   bool      `db:"is_active"`
	TotalPaid  int64     `db:"total_paid"`
}

type ReportRepository interface {
	Stats(ctx context.Context, now time.Time) (*Stats, error)
	Subscribers(ctx context.Context, onlyActive bool, limit int) ([]SubscriberRow, error)
}
