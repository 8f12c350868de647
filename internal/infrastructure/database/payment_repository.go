package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
)

type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет платеж в статусе pending
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPending
	}
	if payment.Currency == "" {
		payment.Currency = domain.CurrencyRUB
	}

	query := `
		INSERT INTO payments (user_id, amount, currency, subscription_days, payment_provider, payment_id, provider_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.SubscriptionDays,
		payment.Provider,
		payment.PaymentID,
		payment.ProviderPaymentID,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания платежа: %w", err)
	}
	return nil
}

// MarkSucceeded переводит платеж в success условным UPDATE, а если записи нет, вставляет ее.
// Обе ветки срабатывают не больше одного раза на payment_id, поэтому продление подписки
// в той же транзакции происходит ровно один раз на платеж.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, payment *domain.Payment, now time.Time) (*domain.Subscription, bool, error) {
	var sub *domain.Subscription

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		applied, err := markSucceeded(ctx, tx, payment)
		if err != nil || !applied {
			return err
		}

		sub, err = extendSubscription(ctx, tx, payment.UserID, payment.SubscriptionDays, now)
		if err != nil {
			return fmt.Errorf("ошибка продления подписки: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("ошибка применения платежа: %w", err)
	}
	return sub, sub != nil, nil
}

func markSucceeded(ctx context.Context, q queryer, payment *domain.Payment) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET status = 'success',
			provider_payment_id = CASE WHEN $2 <> '' THEN $2 ELSE provider_payment_id END,
			updated_at = NOW()
		WHERE payment_id = $1 AND status <> 'success'`,
		payment.PaymentID, payment.ProviderPaymentID)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления платежа: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	currency := payment.Currency
	if currency == "" {
		currency = domain.CurrencyRUB
	}
	res, err = q.ExecContext(ctx, `
		INSERT INTO payments (user_id, amount, currency, subscription_days, payment_provider, payment_id, provider_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'success')
		ON CONFLICT (payment_id) DO NOTHING`,
		payment.UserID,
		payment.Amount,
		currency,
		payment.SubscriptionDays,
		payment.Provider,
		payment.PaymentID,
		payment.ProviderPaymentID,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка создания успешного платежа: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFailed помечает платеж неуспешным. Успешный или уже отклоненный платеж не меняется.
func (r *PaymentRepository) MarkFailed(ctx context.Context, payment *domain.Payment) (bool, error) {
	currency := payment.Currency
	if currency == "" {
		currency = domain.CurrencyRUB
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (user_id, amount, currency, subscription_days, payment_provider, payment_id, provider_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'failed')
		ON CONFLICT (payment_id) DO UPDATE SET status = 'failed', updated_at = NOW()
		WHERE payments.status = 'pending'`,
		payment.UserID,
		payment.Amount,
		currency,
		payment.SubscriptionDays,
		payment.Provider,
		payment.PaymentID,
		payment.ProviderPaymentID,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки неуспешного платежа: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByUser возвращает последние платежи пользователя
func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT id, user_id, amount, currency, subscription_days, payment_provider, payment_id, provider_payment_id, status, created_at, updated_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p := &domain.Payment{}
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Amount,
			&p.Currency,
			&p.SubscriptionDays,
			&p.Provider,
			&p.PaymentID,
			&p.ProviderPaymentID,
			&p.Status,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
