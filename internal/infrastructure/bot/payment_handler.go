package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handlePreCheckout подтверждает оплату счета, если payload выписан этому пользователю
func (b *Bot) handlePreCheckout(ctx context.Context, query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if err := b.svc.Payments.ValidateInvoicePayload(query.From.ID, query.InvoicePayload); err != nil {
		b.logger.WithUser(ctx, query.From.ID).WithError(err).Warn("⚠️ Отклонен pre-checkout")
		answer.OK = false
		answer.ErrorMessage = "Счет устарел. Выберите тариф заново."
	}

	if _, err := b.api.Request(answer); err != nil {
		b.logger.WithUser(ctx, query.From.ID).WithError(err).Error("❌ Не удалось ответить на pre-checkout")
	}
}

// handleSuccessfulPayment применяет оплату счета Telegram. Подтверждение отправит сервис платежей.
func (b *Bot) handleSuccessfulPayment(ctx context.Context, message *tgbotapi.Message) {
	payment := message.SuccessfulPayment
	log := b.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":   message.From.ID,
		"payload":   payment.InvoicePayload,
		"charge_id": payment.TelegramPaymentChargeID,
	})
	log.Info("💳 Получен платеж Telegram")

	err := b.svc.Payments.ApplyTelegramPayment(ctx, message.From.ID, payment.InvoicePayload,
		int64(payment.TotalAmount), payment.TelegramPaymentChargeID)
	if err != nil {
		log.WithError(err).Error("❌ Не удалось применить платеж Telegram")
		b.sendText(ctx, message.Chat.ID, "⚠️ Оплата получена, но подписка пока не продлена. Мы уже разбираемся, напишите в поддержку, если доступ не появится.")
	}
}
