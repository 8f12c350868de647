package database

import (
	"context"
	"database/sql"
	"fmt"

	"breathing_club_bot/internal/domain"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert создает пользователя или обновляет его данные из Telegram.
// referrer_id после первой записи не перезаписывается.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) (bool, error) {
	query := `
		INSERT INTO users (id, first_name, last_name, username, language_code, referrer_id, is_admin, is_premium)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			language_code = EXCLUDED.language_code,
			referrer_id = COALESCE(users.referrer_id, EXCLUDED.referrer_id),
			is_admin = EXCLUDED.is_admin,
			is_premium = EXCLUDED.is_premium
		RETURNING created_at, (xmax = 0) AS inserted`

	var created bool
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.LanguageCode,
		nullInt64(user.ReferrerID),
		user.IsAdmin,
		user.IsPremium,
	).Scan(&user.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	query := `
		SELECT id, first_name, last_name, username, language_code, referrer_id, is_admin, is_premium, created_at
		FROM users WHERE id = $1`

	user := &domain.User{}
	var referrerID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.LanguageCode,
		&referrerID,
		&user.IsAdmin,
		&user.IsPremium,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	user.ReferrerID = int64Ptr(referrerID)
	return user, nil
}

// ListIDs возвращает всех пользователей для рассылки
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
