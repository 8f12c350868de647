package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// Sender часть tgbotapi.BotAPI, которой пользуется бот
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

const dateLayout = "02.01.2006"

// Notifier отправляет пользователям сообщения, инициированные не ими: итог оплаты,
// напоминания планировщика, рассылку. Ошибки оборачивают domain.ErrNotificationDelivery.
type Notifier struct {
	api    Sender
	cfg    *config.Config
	logger *monitoring.Logger
}

func NewNotifier(api Sender, cfg *config.Config, logger *monitoring.Logger) *Notifier {
	return &Notifier{api: api, cfg: cfg, logger: logger}
}

func (n *Notifier) send(ctx context.Context, kind string, c tgbotapi.Chattable) error {
	if _, err := n.api.Send(c); err != nil {
		monitoring.RecordTelegramMessageSent(kind, "error")
		return fmt.Errorf("%w: %s: %v", domain.ErrNotificationDelivery, kind, err)
	}
	monitoring.RecordTelegramMessageSent(kind, "ok")
	return nil
}

func (n *Notifier) PaymentSucceeded(ctx context.Context, userID int64, sub *domain.Subscription) error {
	text := "✅ Оплата прошла успешно!\n\nДобро пожаловать в дыхательный клуб 🌿"
	if sub != nil {
		text += fmt.Sprintf("\n\n📅 Подписка активна до %s", sub.ExpiresAt.Format(dateLayout))
	}

	msg := tgbotapi.NewMessage(userID, text)
	if n.cfg.ChannelInviteURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🔗 Перейти в канал", n.cfg.ChannelInviteURL),
			),
		)
	}
	return n.send(ctx, "payment_succeeded", msg)
}

func (n *Notifier) PaymentFailed(ctx context.Context, userID int64) error {
	msg := tgbotapi.NewMessage(userID, "❌ Оплата не прошла.\n\nПопробуйте еще раз или напишите в поддержку.")
	msg.ReplyMarkup = CreateRenewKeyboard()
	return n.send(ctx, "payment_failed", msg)
}

func (n *Notifier) ReferralBonusGranted(ctx context.Context, referrerID int64, bonusDays int, sub *domain.Subscription) error {
	text := fmt.Sprintf("🎉 Ваш друг оплатил подписку! Вам начислено %d дней клуба в подарок.", bonusDays)
	if sub != nil {
		text += fmt.Sprintf("\n\n📅 Подписка активна до %s", sub.ExpiresAt.Format(dateLayout))
	}
	return n.send(ctx, "referral_bonus", tgbotapi.NewMessage(referrerID, text))
}

func (n *Notifier) SubscriptionExpired(ctx context.Context, userID int64) error {
	msg := tgbotapi.NewMessage(userID, "❌ Ваша подписка истекла\n\nДоступ к каналу закрыт. Чтобы продолжить практики, продлите подписку.")
	msg.ReplyMarkup = CreateRenewKeyboard()
	return n.send(ctx, "subscription_expired", msg)
}

func (n *Notifier) SubscriptionExpiring(ctx context.Context, userID int64, sub *domain.Subscription) error {
	text := "⏳ Ваша подписка скоро закончится."
	if sub != nil {
		text = fmt.Sprintf("⏳ Ваша подписка закончится %s.\n\nПродлите ее заранее, чтобы не потерять доступ к каналу.", sub.ExpiresAt.Format(dateLayout))
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = CreateRenewKeyboard()
	return n.send(ctx, "subscription_expiring", msg)
}

func (n *Notifier) LessonReminder(ctx context.Context, userID int64) error {
	text := "😿 Нежное напоминание 🤍\n\n" +
		"Вы еще не досмотрели урок по дыханию. Это всего 8 минут, " +
		"которые помогут снизить тревогу и вернуть силы.\n\n" +
		"Нажмите кнопку и посмотрите урок прямо сейчас ⬇️"

	if n.cfg.SadCatPhotoURL != "" {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(n.cfg.SadCatPhotoURL))
		photo.Caption = text
		photo.ReplyMarkup = CreateReminderKeyboard()
		err := n.send(ctx, "lesson_reminder", photo)
		if err == nil {
			return nil
		}
		n.logger.WithUser(ctx, userID).WithError(err).Debug("Фото напоминания не отправилось, шлем текст")
	}

	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = CreateReminderKeyboard()
	return n.send(ctx, "lesson_reminder", msg)
}

func (n *Notifier) UnconvertedReminder(ctx context.Context, userID int64) error {
	msg := tgbotapi.NewMessage(userID,
		"🌿 Как вам урок?\n\nЕсли практика откликнулась, приходите в клуб: "+
			"ежедневные дыхательные практики, занятия кундалини-йогой и поддержка.")
	msg.ReplyMarkup = CreateRenewKeyboard()
	return n.send(ctx, "unconverted_reminder", msg)
}

// SendText отправляет произвольный текст (рассылка администратора)
func (n *Notifier) SendText(ctx context.Context, userID int64, text string) error {
	return n.send(ctx, "broadcast", tgbotapi.NewMessage(userID, text))
}
