package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
)

// Callback data инлайн-кнопок
const (
	cbAgree        = "agreement:agree"
	cbMainMenu     = "menu:main"
	cbLessonWatch  = "lesson:watch"
	cbLessonJoin   = "lesson:join"
	cbTariffs      = "menu:tariffs"
	cbTariffPrefix = "tariff:"
	cbPromoSkip    = "promo:skip"
	cbInvoice      = "pay:invoice:"
	cbAccount      = "account"
	cbBonuses      = "bonuses"
	cbBonusVideo   = "bonus:video"

	cbAdminStats         = "admin:stats"
	cbAdminUsers         = "admin:users"
	cbAdminExport        = "admin:export"
	cbAdminBroadcast     = "admin:broadcast"
	cbAdminApproveReview = "admin:approve_review:"
)

// MainMenuButton текст постоянной кнопки под полем ввода
const MainMenuButton = "📱 Главное меню"

// CreateMenuReplyKeyboard создает постоянную кнопку главного меню
func CreateMenuReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(MainMenuButton)),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// CreateAgreementKeyboard создает клавиатуру со ссылками на документы и кнопкой согласия
func CreateAgreementKeyboard(cfg *config.Config) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📄 Договор оферты", cfg.OfferDocumentURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔒 Политика конфиденциальности", cfg.PrivacyDocumentURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("✍️ Согласие на обработку данных", cfg.ConsentDocumentURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Я согласен(на)", cbAgree),
		),
	)
}

// CreateMainKeyboard создает главное меню
func CreateMainKeyboard(cfg *config.Config) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎁 Бесплатный урок", cbLessonWatch),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌿 Вступить в клуб", cbTariffs),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💎 Моя подписка", cbAccount),
			tgbotapi.NewInlineKeyboardButtonData("🎉 Бонусы", cbBonuses),
		),
	}
	if cfg.SupportURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💬 Поддержка", cfg.SupportURL),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// CreateBackKeyboard кнопка возврата в главное меню
func CreateBackKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
		),
	)
}

// CreateLessonKeyboard кнопка перехода к тарифам после урока
func CreateLessonKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌿 Вступить в клуб", cbLessonJoin),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
		),
	)
}

// CreateReminderKeyboard клавиатура напоминания об уроке
func CreateReminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Смотреть урок", cbLessonWatch),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌿 Вступить в клуб", cbLessonJoin),
		),
	)
}

// CreateTariffsKeyboard по кнопке на каждый тариф
func CreateTariffsKeyboard(tariffs []domain.Tariff) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		text := fmt.Sprintf("%s · %s ₽", t.Title, domain.FormatRubles(t.Price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, fmt.Sprintf("%s%d", cbTariffPrefix, t.Days)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// CreatePromoKeyboard кнопка "без промокода"
func CreatePromoKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➡️ Продолжить без промокода", cbPromoSkip),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ К тарифам", cbTariffs),
		),
	)
}

// CreatePaymentKeyboard ссылка на оплату и, если настроен токен, оплата счетом Telegram
func CreatePaymentKeyboard(cfg *config.Config, payURL string, days int, promo string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Оплатить", payURL),
		),
	}
	if cfg.PaymentToken != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Оплатить картой в Telegram", invoiceCallback(days, promo)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func invoiceCallback(days int, promo string) string {
	if promo == "" {
		return fmt.Sprintf("%s%d", cbInvoice, days)
	}
	return fmt.Sprintf("%s%d:%s", cbInvoice, days, promo)
}

// CreateRenewKeyboard кнопка продления подписки
func CreateRenewKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Продлить подписку", cbTariffs),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
		),
	)
}

// CreateBonusesKeyboard клавиатура раздела бонусов
func CreateBonusesKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 Промокод за видео-отзыв", cbBonusVideo),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Главное меню", cbMainMenu),
		),
	)
}

// CreateAdminKeyboard панель администратора
func CreateAdminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", cbAdminStats),
			tgbotapi.NewInlineKeyboardButtonData("👥 Подписчики", cbAdminUsers),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📥 Выгрузка xlsx", cbAdminExport),
			tgbotapi.NewInlineKeyboardButtonData("📣 Рассылка", cbAdminBroadcast),
		),
	)
}

// CreateApproveReviewKeyboard кнопка одобрения видео-отзыва
func CreateApproveReviewKeyboard(reviewID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить отзыв", fmt.Sprintf("%s%d", cbAdminApproveReview, reviewID)),
		),
	)
}
