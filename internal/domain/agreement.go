package domain

import (
	"context"
	"time"
)

// Agreement согласия пользователя с тремя документами
type Agreement struct {
	UserID          int64     `json:"user_id"`
	OfferAccepted   bool      `json:"offer_accepted"`
	PrivacyAccepted bool      `json:"privacy_accepted"`
	ConsentAccepted bool      `json:"consent_accepted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Agreed возвращает true, только если приняты все три документа
func (a *Agreement) Agreed() bool {
	return a != nil && a.OfferAccepted && a.PrivacyAccepted && a.ConsentAccepted
}

type AgreementRepository interface {
	Get(ctx context.Context, userID int64) (*Agreement, error)
	AcceptAll(ctx context.Context, userID int64) error
}
