package prodamus

import (
	"fmt"
	"strconv"
	"strings"

	"breathing_club_bot/internal/domain"
)

// OrderID содержимое идентификатора заказа, который проходит через платежный шлюз.
//
// Формат: user_{uid}_days_{days}_{ts}[_promo_{CODE}]. Части разделяются "_", поэтому
// промокод с подчеркиванием закодировать нельзя: EncodeOrderID такой код отклоняет,
// а DecodeOrderID не пытается угадать его границы.
type OrderID struct {
	UserID    int64
	Days      int
	Timestamp int64
	Promo     string
}

// EncodeOrderID собирает order id
func EncodeOrderID(userID int64, days int, ts int64, promo string) (string, error) {
	s := fmt.Sprintf("user_%d_days_%d_%d", userID, days, ts)
	if promo == "" {
		return s, nil
	}
	if strings.Contains(promo, "_") || !domain.ValidPromocode(promo) {
		return "", fmt.Errorf("%w: %q", domain.ErrPromoNotEncodable, promo)
	}
	return s + "_promo_" + promo, nil
}

// String возвращает закодированное представление. Невалидный промокод отбрасывается.
func (o OrderID) String() string {
	s, err := EncodeOrderID(o.UserID, o.Days, o.Timestamp, o.Promo)
	if err != nil {
		s, _ = EncodeOrderID(o.UserID, o.Days, o.Timestamp, "")
	}
	return s
}

// DecodeOrderID разбирает order id. Любое отклонение от формата возвращает ошибку,
// оборачивающую domain.ErrMalformedOrderID.
func DecodeOrderID(s string) (OrderID, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 4 || parts[0] != "user" || parts[2] != "days" {
		return OrderID{}, fmt.Errorf("%w: %q", domain.ErrMalformedOrderID, s)
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		return OrderID{}, fmt.Errorf("%w: bad user id in %q", domain.ErrMalformedOrderID, s)
	}
	days, err := strconv.Atoi(parts[3])
	if err != nil || days <= 0 {
		return OrderID{}, fmt.Errorf("%w: bad days in %q", domain.ErrMalformedOrderID, s)
	}

	order := OrderID{UserID: userID, Days: days}

	rest := parts[4:]
	if len(rest) > 0 && rest[0] != "promo" {
		// метка времени нужна только для уникальности, поэтому нечисловую не считаем ошибкой
		if ts, err := strconv.ParseInt(rest[0], 10, 64); err == nil {
			order.Timestamp = ts
		}
		rest = rest[1:]
	}

	for i, token := range rest {
		if token != "promo" {
			continue
		}
		if i+1 >= len(rest) || rest[i+1] == "" {
			return OrderID{}, fmt.Errorf("%w: empty promo in %q", domain.ErrMalformedOrderID, s)
		}
		if i+2 != len(rest) {
			return OrderID{}, fmt.Errorf("%w: ambiguous promo in %q", domain.ErrMalformedOrderID, s)
		}
		order.Promo = rest[i+1]
		break
	}

	return order, nil
}
