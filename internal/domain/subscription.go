package domain

import (
	"context"
	"time"
)

// Subscription представляет подписку пользователя. На пользователя не больше одной строки.
//
// IsActive=true еще не значит, что подписка не истекла: флаг снимает планировщик,
// до его запуска ExpiresAt может быть в прошлом.
type Subscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	TariffDays int       `json:"tariff_days"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExtendExpiry возвращает новую дату окончания: к будущей дате дни добавляются,
// истекшая дата сбрасывается на now+days.
func ExtendExpiry(current time.Time, now time.Time, days int) time.Time {
	base := now
	if current.After(now) {
		base = current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}

// IsExpired проверяет истечение подписки относительно now
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsValid возвращает true для активной и не истекшей подписки
func (s *Subscription) IsValid(now time.Time) bool {
	return s != nil && s.IsActive && !s.IsExpired(now)
}

// DaysLeft возвращает количество оставшихся дней, неполный день считается целым
func (s *Subscription) DaysLeft(now time.Time) int {
	if s == nil || s.IsExpired(now) {
		return 0
	}
	left := s.ExpiresAt.Sub(now)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// SubscriptionRepository интерфейс для работы с подписками
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*Subscription, error)
	// Extend атомарно продлевает подписку (или создает ее) по правилу ExtendExpiry и выставляет is_active.
	Extend(ctx context.Context, userID int64, days int, now time.Time) (*Subscription, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Subscription, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*Subscription, error)
	// Deactivate снимает is_active, только если он еще стоит и срок истек к now.
	// Возвращает true, если строка изменилась.
	Deactivate(ctx context.Context, userID int64, now time.Time) (bool, error)
	HasActive(ctx context.Context, userID int64, now time.Time) (bool, error)
}
