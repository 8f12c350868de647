package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

// handleCallback обрабатывает callback от инлайн-кнопок
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	b.logger.WithUser(ctx, callback.From.ID).WithField("data", callback.Data).Debug("Callback")

	data := callback.Data
	answer := ""
	switch {
	case data == cbAgree:
		b.handleAgree(ctx, callback)
	case data == cbMainMenu:
		b.resetState(ctx, callback.From.ID)
		b.editOrSend(ctx, callback, "Выберите действие:", CreateMainKeyboard(b.cfg))
	case data == cbLessonWatch:
		b.handleLessonWatch(ctx, callback)
	case data == cbLessonJoin:
		b.handleLessonJoin(ctx, callback)
	case data == cbTariffs:
		b.resetState(ctx, callback.From.ID)
		b.editOrSend(ctx, callback, tariffsText, CreateTariffsKeyboard(b.cfg.Tariffs))
	case strings.HasPrefix(data, cbTariffPrefix):
		answer = b.handleTariffSelected(ctx, callback, strings.TrimPrefix(data, cbTariffPrefix))
	case data == cbPromoSkip:
		b.handlePromoSkip(ctx, callback)
	case strings.HasPrefix(data, cbInvoice):
		answer = b.handleInvoice(ctx, callback, strings.TrimPrefix(data, cbInvoice))
	case data == cbAccount:
		b.handleAccount(ctx, callback)
	case data == cbBonuses:
		b.handleBonuses(ctx, callback)
	case data == cbBonusVideo:
		b.handleBonusVideo(ctx, callback)
	case strings.HasPrefix(data, "admin:"):
		if !b.cfg.IsAdmin(callback.From.ID) {
			b.answerCallback(ctx, callback, "Недостаточно прав")
			return
		}
		b.handleAdminCallback(ctx, callback)
		return
	default:
		monitoring.RecordError("unknown_callback", "bot")
		b.logger.WithContext(ctx).WithField("data", data).Warn("Неизвестный callback")
	}

	b.answerCallback(ctx, callback, answer)
}

func (b *Bot) handleAgree(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if err := b.svc.Users.AcceptAgreement(ctx, callback.From.ID); err != nil {
		b.internalError(ctx, callback.From.ID, err, "сохранение согласия")
		return
	}
	b.editOrSend(ctx, callback, "🙏 Спасибо! Теперь вам доступно все меню.\n\nВыберите действие:", CreateMainKeyboard(b.cfg))
}

const lessonText = "Я практикую больше 6 лет, и тревога одна из самых частых тем в моей работе.\n\n" +
	"Этот урок для вас, если:\n" +
	"✅ вы давно в тяжелом эмоциональном состоянии\n" +
	"✅ сложно расслабиться даже в спокойной обстановке\n" +
	"✅ вся энергия уходит в тревожные мысли\n\n" +
	"Это другой путь. Через тело и дыхание.\n\n" +
	"⏱ Всего 8 минут. Найдите тихое место, нажмите play и просто следуйте за голосом 👇"

const tariffsText = "🌿 Дыхательный клуб\n\n" +
	"• ежедневные дыхательные практики\n" +
	"• занятия кундалини-йогой\n" +
	"• закрытый чат участников\n" +
	"• личная поддержка\n\n" +
	"Выберите срок подписки:"

// handleLessonWatch отправляет бесплатный урок и ставит отложенное напоминание
func (b *Bot) handleLessonWatch(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	if _, err := b.svc.Lessons.StartLesson(ctx, userID); err != nil {
		b.internalError(ctx, userID, err, "старт урока")
		return
	}

	b.editOrSend(ctx, callback, lessonText, CreateLessonKeyboard())

	var file tgbotapi.RequestFileData
	switch {
	case b.cfg.LessonVideoFileID != "":
		file = tgbotapi.FileID(b.cfg.LessonVideoFileID)
	case b.cfg.LessonVideoURL != "":
		file = tgbotapi.FileURL(b.cfg.LessonVideoURL)
	default:
		return
	}
	video := tgbotapi.NewVideo(userID, file)
	video.Caption = "🎥 Урок по дыханию"
	video.ReplyMarkup = CreateLessonKeyboard()
	b.reply(ctx, video)
}

func (b *Bot) handleLessonJoin(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if err := b.svc.Lessons.JoinClicked(ctx, callback.From.ID); err != nil {
		b.logger.WithUser(ctx, callback.From.ID).WithError(err).Warn("⚠️ Не удалось отметить переход к тарифам")
	}
	b.editOrSend(ctx, callback, tariffsText, CreateTariffsKeyboard(b.cfg.Tariffs))
}

// handleTariffSelected запоминает тариф и спрашивает промокод. Возвращает текст ответа на callback.
func (b *Bot) handleTariffSelected(ctx context.Context, callback *tgbotapi.CallbackQuery, rawDays string) string {
	days, err := strconv.Atoi(rawDays)
	tariff, ok := b.cfg.FindTariff(days)
	if err != nil || !ok {
		return "Неверный тариф"
	}

	if !b.setState(ctx, callback.From.ID, &UserState{Step: StepAwaitingPromo, TariffDays: tariff.Days}) {
		return ""
	}

	text := fmt.Sprintf("Вы выбрали: %s\nСтоимость: %s ₽\n\nЕсть промокод? Отправьте его сообщением.",
		tariff.Title, domain.FormatRubles(tariff.Price))
	b.editOrSend(ctx, callback, text, CreatePromoKeyboard())
	return ""
}

func (b *Bot) handlePromoSkip(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	state, err := b.state.GetState(ctx, callback.From.ID)
	if err != nil || state.Step != StepAwaitingPromo {
		b.editOrSend(ctx, callback, "Выберите тариф заново:", CreateTariffsKeyboard(b.cfg.Tariffs))
		return
	}
	b.sendPaymentLink(ctx, callback.From.ID, callback.From.ID, state.TariffDays, "")
}

// sendPaymentLink создает ссылку на оплату и отправляет ее пользователю
func (b *Bot) sendPaymentLink(ctx context.Context, chatID, userID int64, days int, promo string) {
	link, err := b.svc.Payments.CreatePaymentLink(ctx, userID, days, promo)
	if err != nil {
		b.internalError(ctx, chatID, err, "создание ссылки на оплату")
		return
	}
	b.resetState(ctx, userID)

	text := fmt.Sprintf("💳 Тариф: %s\nК оплате: %s ₽", link.Tariff.Title, domain.FormatRubles(link.Amount))
	code := ""
	if link.Promo.Applied() {
		code = link.Promo.Promocode.Code
		text += fmt.Sprintf("\n🏷 Промокод %s: скидка %s ₽", code, domain.FormatRubles(link.Promo.BaseAmount-link.Amount))
	}
	text += "\n\nПосле оплаты доступ к каналу откроется автоматически."
	b.sendWithKeyboard(ctx, chatID, text, CreatePaymentKeyboard(b.cfg, link.URL, days, code))
}

// handleInvoice выставляет нативный счет Telegram. Формат данных: {days}[:{promo}]
func (b *Bot) handleInvoice(ctx context.Context, callback *tgbotapi.CallbackQuery, data string) string {
	if b.cfg.PaymentToken == "" {
		return "Оплата в Telegram недоступна"
	}

	rawDays, promo, _ := strings.Cut(data, ":")
	days, err := strconv.Atoi(rawDays)
	if err != nil {
		return "Неверный тариф"
	}

	invoice, err := b.svc.Payments.CreateInvoice(ctx, callback.From.ID, days, promo)
	if errors.Is(err, domain.ErrUnknownTariff) {
		return "Неверный тариф"
	}
	if err != nil {
		b.internalError(ctx, callback.From.ID, err, "создание счета")
		return ""
	}

	prices := []tgbotapi.LabeledPrice{{Label: invoice.Tariff.Title, Amount: int(invoice.Amount)}}
	cfg := tgbotapi.NewInvoice(callback.From.ID, invoice.Title, invoice.Description, invoice.Payload,
		b.cfg.PaymentToken, "club", domain.CurrencyRUB, prices)
	cfg.SuggestedTipAmounts = []int{}
	if _, err := b.Send(cfg); err != nil {
		b.internalError(ctx, callback.From.ID, err, "отправка счета")
	}
	return ""
}

func (b *Bot) handleAccount(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	account, err := b.svc.Subscriptions.Account(ctx, callback.From.ID)
	if err != nil {
		b.internalError(ctx, callback.From.ID, err, "получение подписки")
		return
	}
	b.editOrSend(ctx, callback, accountText(account.Subscription, account.Active, account.DaysLeft, account.Payments), CreateRenewKeyboard())
}

func accountText(sub *domain.Subscription, active bool, daysLeft int, payments []*domain.Payment) string {
	var sb strings.Builder
	sb.WriteString("💎 Моя подписка\n\n")
	switch {
	case active:
		fmt.Fprintf(&sb, "✅ Активна до %s\n⏳ Осталось дней: %d\n", sub.ExpiresAt.Format(dateLayout), daysLeft)
	case sub != nil:
		fmt.Fprintf(&sb, "❌ Закончилась %s\n", sub.ExpiresAt.Format(dateLayout))
	default:
		sb.WriteString("У вас пока нет подписки.\n")
	}

	if len(payments) > 0 {
		sb.WriteString("\n🧾 Последние платежи:\n")
		for _, p := range payments {
			fmt.Fprintf(&sb, "• %s · %s ₽ · %d дн. · %s\n",
				p.CreatedAt.Format(dateLayout), domain.FormatRubles(p.Amount), p.SubscriptionDays, paymentStatusText(p.Status))
		}
	}
	return sb.String()
}

func paymentStatusText(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusSuccess:
		return "оплачен"
	case domain.PaymentStatusFailed:
		return "ошибка"
	default:
		return "ожидает оплаты"
	}
}

func (b *Bot) handleBonuses(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	stats, err := b.svc.Referrals.Stats(ctx, callback.From.ID)
	if err != nil {
		b.internalError(ctx, callback.From.ID, err, "статистика приглашений")
		return
	}

	text := fmt.Sprintf("🎉 Бонусы\n\n"+
		"🤝 Пригласите друга по ссылке, и после его первой оплаты вы получите %d дней клуба в подарок:\n%s\n\n"+
		"Приглашено: %d\nБонусов получено: %d\n\n"+
		"🎬 Запишите видео-отзыв и получите промокод на скидку.",
		b.cfg.ReferralBonusDays, b.svc.Users.ReferralLink(callback.From.ID), stats.Invited, stats.BonusesGiven)
	b.editOrSend(ctx, callback, text, CreateBonusesKeyboard())
}

func (b *Bot) handleBonusVideo(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if !b.setState(ctx, callback.From.ID, &UserState{Step: StepAwaitingVideo}) {
		return
	}
	b.editOrSend(ctx, callback, "🎬 Запишите короткое видео о своих впечатлениях от практик и отправьте его сюда.", CreateBackKeyboard())
}
