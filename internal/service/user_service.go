package service

import (
	"context"
	"strconv"
	"strings"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

const referralPrefix = "ref_"

// StartResult итог обработки /start
type StartResult struct {
	User     *domain.User
	Created  bool
	Referred bool
	Agreed   bool
}

type UserService struct {
	cfg        *config.Config
	users      domain.UserRepository
	agreements domain.AgreementRepository
	referrals  *ReferralService
	logger     *monitoring.Logger
}

func NewUserService(cfg *config.Config, users domain.UserRepository, agreements domain.AgreementRepository, referrals *ReferralService, logger *monitoring.Logger) *UserService {
	return &UserService{
		cfg:        cfg,
		users:      users,
		agreements: agreements,
		referrals:  referrals,
		logger:     logger,
	}
}

// ParseReferralPayload разбирает аргумент /start вида ref_{id}
func ParseReferralPayload(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, referralPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, referralPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ReferralLink возвращает ссылку-приглашение пользователя
func (s *UserService) ReferralLink(userID int64) string {
	return "https://t.me/" + s.cfg.BotUsername + "?start=" + referralPrefix + strconv.FormatInt(userID, 10)
}

// Start сохраняет пользователя и регистрирует приглашение, если он пришел по реферальной ссылке впервые
func (s *UserService) Start(ctx context.Context, user *domain.User, payload string) (*StartResult, error) {
	log := s.logger.WithUser(ctx, user.ID)

	existing, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var referrerID int64
	if existing == nil {
		if id, ok := ParseReferralPayload(payload); ok && id != user.ID {
			referrer, err := s.users.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if referrer != nil {
				referrerID = id
				user.ReferrerID = &referrerID
			}
		}
	}

	user.IsAdmin = s.cfg.IsAdmin(user.ID)
	created, err := s.users.Upsert(ctx, user)
	if err != nil {
		return nil, err
	}

	result := &StartResult{User: user, Created: created}
	if created {
		log.Info("👋 Новый пользователь")
	}

	if referrerID != 0 {
		referred, err := s.referrals.Register(ctx, referrerID, user.ID)
		if err != nil {
			log.WithError(err).Warn("⚠️ Не удалось зарегистрировать приглашение")
		}
		result.Referred = referred
		if referred {
			log.WithField("referrer_id", referrerID).Info("🤝 Пользователь пришел по приглашению")
		}
	}

	agreed, err := s.Agreed(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	result.Agreed = agreed
	return result, nil
}

// Agreed проверяет, приняты ли все документы
func (s *UserService) Agreed(ctx context.Context, userID int64) (bool, error) {
	agreement, err := s.agreements.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return agreement.Agreed(), nil
}

func (s *UserService) AcceptAgreement(ctx context.Context, userID int64) error {
	return s.agreements.AcceptAll(ctx, userID)
}
