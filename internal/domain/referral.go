package domain

import (
	"context"
	"time"
)

// Referral связь "кто кого пригласил". Бонус выдается не больше одного раза.
type Referral struct {
	ID           int64      `json:"id"`
	ReferrerID   int64      `json:"referrer_id"`
	ReferredID   int64      `json:"referred_id"`
	IsBonusGiven bool       `json:"is_bonus_given"`
	BonusGivenAt *time.Time `json:"bonus_given_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ReferralStats статистика приглашений пользователя
type ReferralStats struct {
	Invited      int `json:"invited"`
	BonusesGiven int `json:"bonuses_given"`
}

// ReferralRepository интерфейс для работы с рефералами
type ReferralRepository interface {
	// Create регистрирует приглашение. Пользователя можно пригласить только один раз.
	Create(ctx context.Context, referrerID, referredID int64) (bool, error)
	// GrantBonus условным UPDATE помечает бонус выданным и в той же транзакции продлевает
	// подписку пригласившего на bonusDays. granted=false, если выдавать нечего.
	GrantBonus(ctx context.Context, referredID int64, bonusDays int, now time.Time) (referrerID int64, granted bool, err error)
	Stats(ctx context.Context, referrerID int64) (*ReferralStats, error)
}
