package domain

import (
	"testing"
	"time"
)

func TestExtendExpiry(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		current time.Time
		days    int
		want    time.Time
	}{
		{"будущая дата продлевается", now.Add(5 * 24 * time.Hour), 30, now.Add(35 * 24 * time.Hour)},
		{"истекшая дата сбрасывается", now.Add(-48 * time.Hour), 30, now.Add(30 * 24 * time.Hour)},
		{"нулевая дата (новая подписка)", time.Time{}, 90, now.Add(90 * 24 * time.Hour)},
		{"граница: истекает прямо сейчас", now, 7, now.Add(7 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtendExpiry(tt.current, now, tt.days); !got.Equal(tt.want) {
				t.Errorf("ExtendExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscriptionDaysLeft(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"ровно 30 дней", now.Add(30 * 24 * time.Hour), 30},
		{"неполный день считается", now.Add(2*24*time.Hour + time.Hour), 3},
		{"истекла", now.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Subscription{ExpiresAt: tt.expiresAt, IsActive: true}
			if got := s.DaysLeft(now); got != tt.want {
				t.Errorf("DaysLeft() = %d, want %d", got, tt.want)
			}
		})
	}

	var nilSub *Subscription
	if nilSub.DaysLeft(now) != 0 || nilSub.IsValid(now) {
		t.Error("nil подписка должна быть невалидной и без дней")
	}
}

func TestSubscriptionIsValid(t *testing.T) {
	now := time.Now()

	active := &Subscription{ExpiresAt: now.Add(time.Hour), IsActive: true}
	if !active.IsValid(now) {
		t.Error("активная неистекшая подписка должна быть валидной")
	}

	stale := &Subscription{ExpiresAt: now.Add(-time.Hour), IsActive: true}
	if stale.IsValid(now) {
		t.Error("истекшая подписка с is_active=true не должна считаться валидной")
	}

	inactive := &Subscription{ExpiresAt: now.Add(time.Hour), IsActive: false}
	if inactive.IsValid(now) {
		t.Error("деактивированная подписка не должна считаться валидной")
	}
}
