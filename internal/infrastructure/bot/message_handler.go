package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/domain"
)

// handleMessage обрабатывает входящие сообщения
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	log := b.logger.WithUser(ctx, userID)

	if message.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, message)
		return
	}

	if message.IsCommand() {
		log.WithField("command", message.Command()).Debug("Команда")
		b.handleCommand(ctx, message)
		return
	}

	if message.Text == MainMenuButton {
		b.resetState(ctx, userID)
		b.sendWithKeyboard(ctx, message.Chat.ID, "Выберите действие:", CreateMainKeyboard(b.cfg))
		return
	}

	state, err := b.state.GetState(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("⚠️ Не удалось получить состояние диалога")
		state = &UserState{}
	}

	switch state.Step {
	case StepAwaitingPromo:
		if message.Text == "" {
			b.sendWithKeyboard(ctx, message.Chat.ID, "Отправьте промокод текстом или продолжите без него.", CreatePromoKeyboard())
			return
		}
		b.handlePromoInput(ctx, message, state)
	case StepAwaitingVideo:
		b.handleVideoReview(ctx, message)
	case StepAwaitingBroadcast:
		if !b.cfg.IsAdmin(userID) {
			b.resetState(ctx, userID)
			return
		}
		b.handleBroadcastText(ctx, message)
	default:
		b.sendWithKeyboard(ctx, message.Chat.ID, "Выберите действие в меню 👇", CreateMainKeyboard(b.cfg))
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
		return
	case "menu":
		b.resetState(ctx, userID)
		b.sendWithKeyboard(ctx, message.Chat.ID, "Выберите действие:", CreateMainKeyboard(b.cfg))
		return
	}

	if !b.cfg.IsAdmin(userID) {
		b.sendWithKeyboard(ctx, message.Chat.ID, "❓ Неизвестная команда. Выберите действие в меню 👇", CreateMainKeyboard(b.cfg))
		return
	}

	switch message.Command() {
	case "admin":
		b.sendWithKeyboard(ctx, message.Chat.ID, "🛠 Панель администратора", CreateAdminKeyboard())
	case "promo":
		b.handleCreatePromo(ctx, message)
	case "getfileid":
		b.handleGetFileID(ctx, message)
	case "run_jobs":
		b.handleRunJobs(ctx, message)
	case "grant":
		b.handleGrant(ctx, message)
	default:
		b.sendText(ctx, message.Chat.ID, "❓ Неизвестная команда.\n\n/admin, /promo CODE СУММА [ЛИМИТ], /grant USER_ID DAYS, /getfileid, /run_jobs")
	}
}

func userFromTelegram(u *tgbotapi.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}

// handleStart регистрирует пользователя и показывает документы или главное меню
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	b.resetState(ctx, message.From.ID)

	result, err := b.svc.Users.Start(ctx, userFromTelegram(message.From), message.CommandArguments())
	if err != nil {
		b.internalError(ctx, message.Chat.ID, err, "регистрация пользователя")
		return
	}

	name := message.From.FirstName
	if !result.Agreed {
		text := fmt.Sprintf("👋 Привет, %s!\n\n"+
			"Добро пожаловать в мир дыхательных практик и кундалини-йоги 🧘‍♀️\n\n"+
			"Чтобы продолжить, ознакомьтесь с документами и примите условия.", name)
		b.sendWithKeyboard(ctx, message.Chat.ID, text, CreateMenuReplyKeyboard())
		b.sendWithKeyboard(ctx, message.Chat.ID, "Документы 👇", CreateAgreementKeyboard(b.cfg))
		return
	}

	b.sendWithKeyboard(ctx, message.Chat.ID, fmt.Sprintf("👋 С возвращением, %s!\n\nРада видеть тебя снова 🌿", name), CreateMenuReplyKeyboard())
	b.sendWithKeyboard(ctx, message.Chat.ID, "Выберите действие:", CreateMainKeyboard(b.cfg))
}

// handlePromoInput применяет промокод к выбранному тарифу и выдает ссылку на оплату
func (b *Bot) handlePromoInput(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	tariff, ok := b.cfg.FindTariff(state.TariffDays)
	if !ok {
		b.resetState(ctx, message.From.ID)
		b.sendWithKeyboard(ctx, message.Chat.ID, "Тариф не найден, выберите его заново.", CreateTariffsKeyboard(b.cfg.Tariffs))
		return
	}

	result, err := b.svc.Promocodes.Apply(ctx, message.From.ID, message.Text, tariff.Price)
	if err != nil {
		b.internalError(ctx, message.Chat.ID, err, "проверка промокода")
		return
	}
	if !result.Applied() {
		b.sendWithKeyboard(ctx, message.Chat.ID, promoReasonText(result.Reason), CreatePromoKeyboard())
		return
	}

	b.sendPaymentLink(ctx, message.Chat.ID, message.From.ID, tariff.Days, result.Promocode.Code)
}

func promoReasonText(reason error) string {
	switch {
	case errors.Is(reason, domain.ErrPromocodeAlreadyUsed):
		return "😔 Вы уже использовали этот промокод. Введите другой или продолжите без него."
	case errors.Is(reason, domain.ErrPromocodeExhausted):
		return "😔 Этот промокод больше не действует. Введите другой или продолжите без него."
	default:
		return "😔 Промокод не найден. Проверьте написание или продолжите без него."
	}
}

// handleVideoReview принимает видео-отзыв и выдает промокод
func (b *Bot) handleVideoReview(ctx context.Context, message *tgbotapi.Message) {
	var fileID string
	switch {
	case message.Video != nil:
		fileID = message.Video.FileID
	case message.VideoNote != nil:
		fileID = message.VideoNote.FileID
	default:
		b.sendWithKeyboard(ctx, message.Chat.ID, "🎬 Пришлите, пожалуйста, видео или кружок.", CreateBackKeyboard())
		return
	}

	result, err := b.svc.Reviews.Submit(ctx, message.From.ID, fileID)
	if err != nil {
		b.internalError(ctx, message.Chat.ID, err, "сохранение видео-отзыва")
		return
	}
	b.resetState(ctx, message.From.ID)

	text := fmt.Sprintf("🙏 Спасибо за отзыв!\n\nВаш промокод: %s\nСкидка %s ₽ на любой тариф.",
		result.Promocode.Code, domain.FormatRubles(result.Promocode.DiscountAmount))
	if !result.Created {
		text = fmt.Sprintf("Вы уже отправляли отзыв 🙌\n\nВаш промокод: %s", result.Promocode.Code)
	}
	b.sendWithKeyboard(ctx, message.Chat.ID, text, CreateBackKeyboard())

	if !result.Created {
		return
	}
	caption := fmt.Sprintf("🎬 Видео-отзыв от %s (id %d)", displayName(message.From), message.From.ID)
	for _, adminID := range b.cfg.AdminIDs {
		video := tgbotapi.NewVideo(adminID, tgbotapi.FileID(fileID))
		video.Caption = caption
		video.ReplyMarkup = CreateApproveReviewKeyboard(result.Review.ID)
		if _, err := b.Send(video); err != nil {
			// кружок нельзя отправить как видео, пересылаем оригинал
			forward := tgbotapi.NewForward(adminID, message.Chat.ID, message.MessageID)
			b.reply(ctx, forward)
			b.sendWithKeyboard(ctx, adminID, caption, CreateApproveReviewKeyboard(result.Review.ID))
		}
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// handleBroadcastText рассылает текст администратора в фоне
func (b *Bot) handleBroadcastText(ctx context.Context, message *tgbotapi.Message) {
	b.resetState(ctx, message.From.ID)
	if strings.TrimSpace(message.Text) == "" {
		b.sendText(ctx, message.Chat.ID, "Рассылка поддерживает только текст.")
		return
	}

	b.sendText(ctx, message.Chat.ID, "📣 Рассылка запущена")
	chatID := message.Chat.ID
	text := message.Text
	b.goBackground(ctx, "рассылка", chatID, func() {
		result, err := b.svc.Admin.Broadcast(ctx, b.notifier, text)
		if err != nil {
			b.internalError(ctx, chatID, err, "рассылка")
			return
		}
		b.sendText(ctx, chatID, fmt.Sprintf("✅ Рассылка завершена\n\nДоставлено: %d\nОшибок: %d", result.Sent, result.Failed))
	})
}

// handleCreatePromo обрабатывает /promo CODE AMOUNT_RUB [MAX_USES]
func (b *Bot) handleCreatePromo(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 2 || len(args) > 3 {
		b.sendText(ctx, message.Chat.ID, "Использование: /promo CODE СУММА_РУБ [ЛИМИТ]")
		return
	}

	discount, err := domain.ParseRubles(args[1])
	if err != nil || discount <= 0 {
		b.sendText(ctx, message.Chat.ID, "❌ Сумма скидки должна быть положительным числом рублей")
		return
	}

	var maxUses *int
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			b.sendText(ctx, message.Chat.ID, "❌ Лимит использований должен быть положительным числом")
			return
		}
		maxUses = &n
	}

	promo, err := b.svc.Promocodes.Create(ctx, args[0], discount, maxUses)
	switch {
	case errors.Is(err, domain.ErrPromocodeInvalid):
		b.sendText(ctx, message.Chat.ID, "❌ Код может содержать только латинские буквы и цифры")
		return
	case errors.Is(err, domain.ErrPromocodeExists):
		b.sendText(ctx, message.Chat.ID, "❌ Такой промокод уже есть")
		return
	case err != nil:
		b.internalError(ctx, message.Chat.ID, err, "создание промокода")
		return
	}

	limit := "без ограничений"
	if promo.MaxUses != nil {
		limit = strconv.Itoa(*promo.MaxUses)
	}
	b.sendText(ctx, message.Chat.ID, fmt.Sprintf("✅ Промокод %s создан\n\nСкидка: %s ₽\nЛимит: %s",
		promo.Code, domain.FormatRubles(promo.DiscountAmount), limit))
}

// handleGetFileID отвечает file_id медиа из сообщения, на которое ответил администратор
func (b *Bot) handleGetFileID(ctx context.Context, message *tgbotapi.Message) {
	target := message.ReplyToMessage
	if target == nil {
		b.sendText(ctx, message.Chat.ID, "Ответьте командой /getfileid на сообщение с видео, фото или файлом.")
		return
	}

	fileID := mediaFileID(target)
	if fileID == "" {
		b.sendText(ctx, message.Chat.ID, "В этом сообщении нет медиа.")
		return
	}
	b.sendText(ctx, message.Chat.ID, fileID)
}

func mediaFileID(m *tgbotapi.Message) string {
	switch {
	case m.Video != nil:
		return m.Video.FileID
	case m.VideoNote != nil:
		return m.VideoNote.FileID
	case m.Animation != nil:
		return m.Animation.FileID
	case len(m.Photo) > 0:
		return m.Photo[len(m.Photo)-1].FileID
	case m.Document != nil:
		return m.Document.FileID
	case m.Audio != nil:
		return m.Audio.FileID
	case m.Voice != nil:
		return m.Voice.FileID
	}
	return ""
}

func (b *Bot) handleRunJobs(ctx context.Context, message *tgbotapi.Message) {
	if b.jobs == nil {
		b.sendText(ctx, message.Chat.ID, "Планировщик не запущен")
		return
	}
	b.sendText(ctx, message.Chat.ID, "⏳ Запускаю задачи...")
	if err := b.jobs.RunOnce(ctx); err != nil {
		b.sendText(ctx, message.Chat.ID, fmt.Sprintf("⚠️ Задачи выполнены с ошибкой: %v", err))
		return
	}
	b.sendText(ctx, message.Chat.ID, "✅ Задачи выполнены")
}

// handleGrant обрабатывает /grant USER_ID DAYS
func (b *Bot) handleGrant(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		b.sendText(ctx, message.Chat.ID, "Использование: /grant USER_ID DAYS")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		b.sendText(ctx, message.Chat.ID, "❌ Некорректный USER_ID")
		return
	}
	days, err := strconv.Atoi(args[1])
	if err != nil || days <= 0 {
		b.sendText(ctx, message.Chat.ID, "❌ Некорректное количество дней")
		return
	}

	sub, err := b.svc.Subscriptions.Grant(ctx, userID, days)
	if err != nil {
		b.internalError(ctx, message.Chat.ID, err, "выдача подписки")
		return
	}
	b.sendText(ctx, message.Chat.ID, fmt.Sprintf("✅ Пользователю %d выдано %d дней. Подписка до %s",
		userID, days, sub.ExpiresAt.Format(dateLayout)))
}

func (b *Bot) resetState(ctx context.Context, userID int64) {
	if err := b.state.ResetState(ctx, userID); err != nil {
		b.logger.WithUser(ctx, userID).WithError(err).Warn("⚠️ Не удалось сбросить состояние")
	}
}

func (b *Bot) setState(ctx context.Context, userID int64, state *UserState) bool {
	if err := b.state.SetState(ctx, userID, state); err != nil {
		b.internalError(ctx, userID, err, "сохранение состояния")
		return false
	}
	return true
}
