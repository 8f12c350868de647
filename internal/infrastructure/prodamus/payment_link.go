package prodamus

import (
	"fmt"
	"net/url"

	"breathing_club_bot/internal/domain"
)

// LinkBuilder собирает подписанные ссылки на оплату
type LinkBuilder struct {
	domain    string
	secretKey string
	sys       string
}

func NewLinkBuilder(gatewayDomain, secretKey, sys string) *LinkBuilder {
	return &LinkBuilder{
		domain:    gatewayDomain,
		secretKey: secretKey,
		sys:       sys,
	}
}

// PaymentRequest параметры ссылки. Amount в копейках, в шлюз уходит в рублях.
type PaymentRequest struct {
	OrderID       string
	Amount        int64
	ProductName   string
	CustomerEmail string
	CustomerPhone string
}

// BuildURL возвращает https://{domain}/pay?...&sign=... Пустые параметры не передаются и не подписываются.
func (b *LinkBuilder) BuildURL(req PaymentRequest) string {
	params := map[string]string{
		"order_id":              req.OrderID,
		"customer_email":        req.CustomerEmail,
		"customer_phone":        req.CustomerPhone,
		"products[0][price]":    domain.FormatRubles(req.Amount),
		"products[0][quantity]": "1",
		"products[0][name]":     req.ProductName,
		"sys":                   b.sys,
	}
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set(SignField, Sign(params, b.secretKey))

	return fmt.Sprintf("https://%s/pay?%s", b.domain, values.Encode())
}
