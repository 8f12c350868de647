package domain

import "errors"

// Ошибки предметной области. Проверяются через errors.Is.
var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrMalformedOrderID     = errors.New("malformed order id")
	ErrPromoNotEncodable    = errors.New("promo code cannot be encoded into order id")
	ErrNotificationDelivery = errors.New("notification delivery failed")
	ErrChannelGate          = errors.New("channel gate operation failed")

	ErrPromocodeNotFound    = errors.New("promocode not found or inactive")
	ErrPromocodeAlreadyUsed = errors.New("promocode already used by user")
	ErrPromocodeExhausted   = errors.New("promocode reached max uses")
	ErrPromocodeInvalid     = errors.New("promocode has invalid format")
	ErrPromocodeExists      = errors.New("promocode already exists")

	ErrUnknownTariff = errors.New("unknown tariff")
)
