package domain

import (
	"context"
	"time"
)

// User представляет пользователя бота (ID совпадает с Telegram ID)
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `json:"username"`
	LanguageCode string    `json:"language_code"`
	ReferrerID   *int64    `json:"referrer_id,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	// Upsert создает пользователя или обновляет отображаемые поля. created=true для нового пользователя.
	Upsert(ctx context.Context, user *User) (created bool, err error)
	GetByID(ctx context.Context, userID int64) (*User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}
