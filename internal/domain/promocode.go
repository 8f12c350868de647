package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Promocode скидочный код. DiscountAmount в копейках, MaxUses=nil означает без ограничений.
type Promocode struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	DiscountAmount int64     `json:"discount_amount"`
	IsActive       bool      `json:"is_active"`
	MaxUses        *int      `json:"max_uses,omitempty"`
	CurrentUses    int       `json:"current_uses"`
	CreatedAt      time.Time `json:"created_at"`
}

var promocodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// NormalizePromocode приводит код к верхнему регистру и убирает пробелы
func NormalizePromocode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidPromocode проверяет, что код можно безопасно передать внутри order id
func ValidPromocode(code string) bool {
	return promocodePattern.MatchString(code)
}

// Exhausted проверяет, исчерпан ли лимит использований
func (p *Promocode) Exhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// ApplyDiscount возвращает сумму со скидкой, не меньше нуля
func (p *Promocode) ApplyDiscount(base int64) int64 {
	final := base - p.DiscountAmount
	if final < 0 {
		return 0
	}
	return final
}

// PromocodeRepository интерфейс для работы с промокодами
type PromocodeRepository interface {
	GetActiveByCode(ctx context.Context, code string) (*Promocode, error)
	HasUsage(ctx context.Context, userID, promocodeID int64) (bool, error)
	// RecordUsage вставляет строку использования и увеличивает счетчик в одной транзакции.
	// Повторный вызов для той же пары ничего не меняет и возвращает false.
	RecordUsage(ctx context.Context, userID, promocodeID int64) (bool, error)
	Create(ctx context.Context, promocode *Promocode) error
	// Ensure создает промокод, если его еще нет, и возвращает актуальную запись
	Ensure(ctx context.Context, promocode *Promocode) (*Promocode, error)
}
