package database

import (
	"context"
	"database/sql"
	"fmt"

	"breathing_club_bot/internal/domain"
)

const promocodeColumns = `id, code, discount_amount, is_active, max_uses, current_uses, created_at`

type PromocodeRepository struct {
	db *DB
}

func NewPromocodeRepository(db *DB) *PromocodeRepository {
	return &PromocodeRepository{db: db}
}

func scanPromocode(row interface{ Scan(...interface{}) error }) (*domain.Promocode, error) {
	p := &domain.Promocode{}
	var maxUses sql.NullInt64
	if err := row.Scan(&p.ID, &p.Code, &p.DiscountAmount, &p.IsActive, &maxUses, &p.CurrentUses, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.MaxUses = intPtr(maxUses)
	return p, nil
}

// GetActiveByCode ищет активный промокод. Код должен быть уже нормализован.
func (r *PromocodeRepository) GetActiveByCode(ctx context.Context, code string) (*domain.Promocode, error) {
	query := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE code = $1 AND is_active = TRUE`

	p, err := scanPromocode(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения промокода: %w", err)
	}
	return p, nil
}

func (r *PromocodeRepository) HasUsage(ctx context.Context, userID, promocodeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM promocode_usages WHERE user_id = $1 AND promocode_id = $2)`,
		userID, promocodeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки использования промокода: %w", err)
	}
	return exists, nil
}

// RecordUsage фиксирует использование промокода. Счетчик растет только при новой записи.
func (r *PromocodeRepository) RecordUsage(ctx context.Context, userID, promocodeID int64) (bool, error) {
	var recorded bool
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO promocode_usages (user_id, promocode_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, promocode_id) DO NOTHING`,
			userID, promocodeID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE promocodes SET current_uses = current_uses + 1 WHERE id = $1`, promocodeID); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ошибка записи использования промокода: %w", err)
	}
	return recorded, nil
}

func (r *PromocodeRepository) Create(ctx context.Context, promocode *domain.Promocode) error {
	query := `
		INSERT INTO promocodes (code, discount_amount, is_active, max_uses)
		VALUES ($1, $2, $3, $4)
		RETURNING id, current_uses, created_at`

	err := r.db.QueryRowContext(ctx, query,
		promocode.Code,
		promocode.DiscountAmount,
		promocode.IsActive,
		nullInt(promocode.MaxUses),
	).Scan(&promocode.ID, &promocode.CurrentUses, &promocode.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrPromocodeExists
	}
	if err != nil {
		return fmt.Errorf("ошибка создания промокода: %w", err)
	}
	return nil
}

// Ensure создает промокод, если такого кода еще нет. Существующая запись не меняется.
func (r *PromocodeRepository) Ensure(ctx context.Context, promocode *domain.Promocode) (*domain.Promocode, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO promocodes (code, discount_amount, is_active, max_uses)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING`,
		promocode.Code,
		promocode.DiscountAmount,
		promocode.IsActive,
		nullInt(promocode.MaxUses),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания промокода: %w", err)
	}

	query := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE code = $1`
	p, err := scanPromocode(r.db.QueryRowContext(ctx, query, promocode.Code))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения промокода: %w", err)
	}
	return p, nil
}
