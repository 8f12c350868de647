package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel/attribute"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/service"
)

// JobRunner запускает задачи планировщика вне расписания (/run_jobs)
type JobRunner interface {
	RunOnce(ctx context.Context) error
}

// Services сервисы, которыми пользуются обработчики
type Services struct {
	Users         *service.UserService
	Subscriptions *service.SubscriptionService
	Payments      *service.PaymentService
	Promocodes    *service.PromocodeService
	Referrals     *service.ReferralService
	Lessons       *service.LessonService
	Reviews       *service.ReviewService
	Admin         *service.AdminService
}

// Bot обрабатывает обновления Telegram
type Bot struct {
	api         Sender
	cfg         *config.Config
	svc         Services
	notifier    *Notifier
	state       *StateManager
	activeUsers *monitoring.ActiveUsersManager
	jobs        JobRunner
	logger      *monitoring.Logger

	background sync.WaitGroup
}

// NewBot создает бота. activeUsers и jobs могут быть nil.
func NewBot(
	api Sender,
	cfg *config.Config,
	svc Services,
	notifier *Notifier,
	state *StateManager,
	activeUsers *monitoring.ActiveUsersManager,
	jobs JobRunner,
	logger *monitoring.Logger,
) *Bot {
	return &Bot{
		api:         api,
		cfg:         cfg,
		svc:         svc,
		notifier:    notifier,
		state:       state,
		activeUsers: activeUsers,
		jobs:        jobs,
		logger:      logger,
	}
}

// Run читает обновления, пока не закроется канал или не отменится ctx.
// Перед выходом дожидается фоновых задач.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.logger.Info("🤖 Бот начал принимать обновления")
	defer b.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Wait ждет завершения фоновых задач (рассылок)
func (b *Bot) Wait() {
	b.background.Wait()
}

// goBackground запускает fn в отдельной горутине. Паника логируется, администратор chatID получает ошибку.
func (b *Bot) goBackground(ctx context.Context, name string, chatID int64, fn func()) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		defer func() {
			if r := recover(); r != nil {
				monitoring.RecordError("panic", "bot")
				b.logger.WithFields(monitoring.Fields{
					"task":  name,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("💥 Паника в фоновой задаче")
				b.internalError(ctx, chatID, fmt.Errorf("panic: %v", r), name)
			}
		}()
		fn()
	}()
}

// HandleUpdate обрабатывает одно обновление. Паника в обработчике не роняет цикл.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.RecordError("panic", "bot")
			b.logger.WithFields(monitoring.Fields{
				"update_id": update.UpdateID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			}).Error("💥 Паника при обработке обновления")
		}
	}()

	ctx, span := monitoring.StartSpan(ctx, "bot.update")
	defer span.End()

	switch {
	case update.PreCheckoutQuery != nil:
		monitoring.RecordTelegramUpdate("pre_checkout_query")
		b.markActive(update.PreCheckoutQuery.From)
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		monitoring.RecordTelegramUpdate("callback_query")
		b.markActive(update.CallbackQuery.From)
		monitoring.AddSpanAttributes(span,
			attribute.Int64("user_id", update.CallbackQuery.From.ID),
			attribute.String("callback", update.CallbackQuery.Data),
		)
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		monitoring.RecordTelegramUpdate("message")
		if update.Message.From == nil {
			return
		}
		b.markActive(update.Message.From)
		monitoring.AddSpanAttributes(span, attribute.Int64("user_id", update.Message.From.ID))
		b.handleMessage(ctx, update.Message)
	default:
		monitoring.RecordTelegramUpdate("other")
	}
}

func (b *Bot) markActive(user *tgbotapi.User) {
	if user != nil {
		b.activeUsers.MarkUserActive(user.ID)
	}
}

// Send отправляет сообщение через API бота
func (b *Bot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		monitoring.RecordTelegramMessageSent("reply", "error")
		return msg, err
	}
	monitoring.RecordTelegramMessageSent("reply", "ok")
	return msg, nil
}

// reply отправляет ответ и логирует ошибку, ответы пользователю не бывают критичными
func (b *Bot) reply(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.Send(c); err != nil {
		b.logger.WithContext(ctx).WithError(err).Warn("⚠️ Не удалось отправить сообщение")
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	b.reply(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendWithKeyboard(ctx context.Context, chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	msg.DisableWebPagePreview = true
	b.reply(ctx, msg)
}

// editOrSend редактирует сообщение с кнопкой, а если это не удалось (например, это фото), шлет новое
func (b *Bot) editOrSend(ctx context.Context, callback *tgbotapi.CallbackQuery, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if callback.Message != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID, text, keyboard)
		edit.DisableWebPagePreview = true
		if _, err := b.api.Request(edit); err == nil {
			return
		}
	}
	b.sendWithKeyboard(ctx, callback.From.ID, text, keyboard)
}

func (b *Bot) answerCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		b.logger.WithContext(ctx).WithError(err).Debug("Не удалось ответить на callback")
	}
}

func (b *Bot) internalError(ctx context.Context, chatID int64, err error, action string) {
	monitoring.RecordError("internal", "bot")
	b.logger.WithUser(ctx, chatID).WithError(err).Errorf("❌ Ошибка: %s", action)
	b.sendText(ctx, chatID, "❌ Что-то пошло не так. Попробуйте еще раз чуть позже.")
}
