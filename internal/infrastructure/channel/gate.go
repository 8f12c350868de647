package channel

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// Requester узкая часть *tgbotapi.BotAPI, которая нужна гейту
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Gate управляет доступом к закрытому каналу через ban/unban
type Gate struct {
	api       Requester
	channelID int64
	logger    *monitoring.Logger
}

func NewGate(api Requester, channelID int64, logger *monitoring.Logger) *Gate {
	return &Gate{api: api, channelID: channelID, logger: logger}
}

// Open снимает бан, если он есть. Пользователя, который не был забанен, это не трогает.
func (g *Gate) Open(ctx context.Context, userID int64) error {
	if err := g.unban(userID); err != nil {
		monitoring.RecordChannelGate("open", "error")
		return fmt.Errorf("%w: open for user %d: %v", domain.ErrChannelGate, userID, err)
	}

	monitoring.RecordChannelGate("open", "ok")
	g.logger.WithUser(ctx, userID).Debug("🔓 Доступ к каналу открыт")
	return nil
}

// Close удаляет пользователя из канала: бан и сразу разбан, чтобы он мог вернуться после оплаты
func (g *Gate) Close(ctx context.Context, userID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: g.channelID,
			UserID: userID,
		},
	}
	if _, err := g.api.Request(ban); err != nil {
		monitoring.RecordChannelGate("close", "error")
		return fmt.Errorf("%w: ban user %d: %v", domain.ErrChannelGate, userID, err)
	}

	if err := g.unban(userID); err != nil {
		monitoring.RecordChannelGate("close", "error")
		return fmt.Errorf("%w: unban after kick user %d: %v", domain.ErrChannelGate, userID, err)
	}

	monitoring.RecordChannelGate("close", "ok")
	g.logger.WithUser(ctx, userID).Info("🚪 Пользователь удален из канала")
	return nil
}

func (g *Gate) unban(userID int64) error {
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: g.channelID,
			UserID: userID,
		},
		OnlyIfBanned: true,
	}
	_, err := g.api.Request(unban)
	return err
}
