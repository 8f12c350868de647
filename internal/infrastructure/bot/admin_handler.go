package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/domain"
)

const adminSubscribersLimit = 20

func (b *Bot) handleAdminCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.From.ID
	data := callback.Data

	switch {
	case data == cbAdminStats:
		b.answerCallback(ctx, callback, "")
		stats, err := b.svc.Admin.Stats(ctx)
		if err != nil {
			b.internalError(ctx, chatID, err, "статистика")
			return
		}
		b.editOrSend(ctx, callback, statsText(stats), CreateAdminKeyboard())

	case data == cbAdminUsers:
		b.answerCallback(ctx, callback, "")
		rows, err := b.svc.Admin.ActiveSubscribers(ctx, adminSubscribersLimit)
		if err != nil {
			b.internalError(ctx, chatID, err, "список подписчиков")
			return
		}
		b.editOrSend(ctx, callback, subscribersText(rows), CreateAdminKeyboard())

	case data == cbAdminExport:
		b.answerCallback(ctx, callback, "Готовлю выгрузку...")
		export, err := b.svc.Admin.ExportSubscribers(ctx)
		if err != nil {
			b.internalError(ctx, chatID, err, "выгрузка подписчиков")
			return
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: export.Filename, Bytes: export.Data.Bytes()})
		doc.Caption = fmt.Sprintf("📥 Подписчиков: %d", export.Rows)
		if export.ArchiveKey != "" {
			doc.Caption += "\n🗄 Копия: " + export.ArchiveKey
		}
		if _, err := b.Send(doc); err != nil {
			b.internalError(ctx, chatID, err, "отправка выгрузки")
		}

	case data == cbAdminBroadcast:
		b.answerCallback(ctx, callback, "")
		if !b.setState(ctx, chatID, &UserState{Step: StepAwaitingBroadcast}) {
			return
		}
		b.sendWithKeyboard(ctx, chatID, "📣 Отправьте текст рассылки одним сообщением.", CreateBackKeyboard())

	case strings.HasPrefix(data, cbAdminApproveReview):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbAdminApproveReview), 10, 64)
		if err != nil {
			b.answerCallback(ctx, callback, "Некорректный отзыв")
			return
		}
		review, err := b.svc.Reviews.Approve(ctx, id)
		if err != nil {
			b.answerCallback(ctx, callback, "Ошибка")
			b.internalError(ctx, chatID, err, "одобрение отзыва")
			return
		}
		if review == nil {
			b.answerCallback(ctx, callback, "Отзыв не найден")
			return
		}
		b.answerCallback(ctx, callback, "✅ Отзыв одобрен")

	default:
		b.answerCallback(ctx, callback, "")
	}
}

func statsText(s *domain.Stats) string {
	return fmt.Sprintf("📊 Статистика\n\n"+
		"👥 Пользователей: %d\n"+
		"💎 Активных подписок: %d\n"+
		"💳 Успешных платежей: %d\n"+
		"💰 Выручка: %s ₽\n"+
		"🎁 Начали урок: %d\n"+
		"🤝 Приглашений: %d",
		s.Users, s.ActiveSubscriptions, s.SuccessfulPayments, domain.FormatRubles(s.Revenue), s.LessonsStarted, s.Referrals)
}

func subscribersText(rows []domain.SubscriberRow) string {
	if len(rows) == 0 {
		return "👥 Активных подписчиков пока нет"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Активные подписчики (%d)\n\n", len(rows))
	for _, r := range rows {
		name := r.FirstName
		if r.Username != "" {
			name = "@" + r.Username
		}
		fmt.Fprintf(&sb, "• %s (%d) до %s\n", name, r.UserID, r.ExpiresAt.Format(dateLayout))
	}
	return sb.String()
}
