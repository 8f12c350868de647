package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.opentelemetry.io/otel/attribute"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/service"
)

const (
	JobKickExpired            = "kick_expired"
	JobRemindExpiring         = "remind_expiring"
	JobRemindUnconverted      = "remind_unconverted"
	JobSendDueLessonReminders = "send_due_lesson_reminders"

	jobTimeout          = 10 * time.Minute
	lessonReminderBatch = 100
)

// Scheduler периодические задачи: удаление истекших подписчиков и напоминания
type Scheduler struct {
	cfg      *config.Config
	subs     domain.SubscriptionRepository
	lessons  domain.LessonRepository
	gate     service.Gate
	notifier service.Notifier
	logger   *monitoring.Logger

	cron *gocron.Scheduler
	ctx  context.Context
	now  func() time.Time
}

// NewScheduler создает планировщик задач
func NewScheduler(
	cfg *config.Config,
	subs domain.SubscriptionRepository,
	lessons domain.LessonRepository,
	gate service.Gate,
	notifier service.Notifier,
	logger *monitoring.Logger,
) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	// задача не запускается, пока не закончился ее предыдущий запуск
	cron.SingletonModeAll()

	return &Scheduler{
		cfg:      cfg,
		subs:     subs,
		lessons:  lessons,
		gate:     gate,
		notifier: notifier,
		logger:   logger,
		cron:     cron,
		ctx:      context.Background(),
		now:      time.Now,
	}
}

// Start регистрирует задачи и запускает планировщик в фоне. ctx отменяет текущие запуски.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	cronJobs := []struct {
		name string
		expr string
		fn   func(context.Context) error
	}{
		{JobKickExpired, s.cfg.KickExpiredCron, s.KickExpired},
		{JobRemindExpiring, s.cfg.ExpiringReminderCron, s.RemindExpiring},
		{JobRemindUnconverted, s.cfg.UnconvertedReminderCron, s.RemindUnconverted},
	}
	for _, job := range cronJobs {
		if _, err := s.cron.Cron(job.expr).Tag(job.name).Do(s.runJob, job.name, job.fn); err != nil {
			return fmt.Errorf("ошибка регистрации задачи %s (%q): %w", job.name, job.expr, err)
		}
	}

	if _, err := s.cron.Every(s.cfg.LessonReminderPoll).Tag(JobSendDueLessonReminders).
		Do(s.runJob, JobSendDueLessonReminders, s.SendDueLessonReminders); err != nil {
		return fmt.Errorf("ошибка регистрации задачи %s: %w", JobSendDueLessonReminders, err)
	}

	s.cron.StartAsync()
	s.logger.WithFields(monitoring.Fields{
		"kick_expired":       s.cfg.KickExpiredCron,
		"remind_expiring":    s.cfg.ExpiringReminderCron,
		"remind_unconverted": s.cfg.UnconvertedReminderCron,
		"lesson_poll":        s.cfg.LessonReminderPoll.String(),
	}).Info("⏰ Планировщик запущен")
	return nil
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("🛑 Планировщик остановлен")
}

// RunOnce последовательно выполняет все задачи один раз
func (s *Scheduler) RunOnce(ctx context.Context) error {
	jobs := []struct {
		name string
		fn   func(context.Context) error
	}{
		{JobKickExpired, s.KickExpired},
		{JobRemindExpiring, s.RemindExpiring},
		{JobRemindUnconverted, s.RemindUnconverted},
		{JobSendDueLessonReminders, s.SendDueLessonReminders},
	}

	var firstErr error
	for _, job := range jobs {
		if err := s.execute(ctx, job.name, job.fn); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	s.execute(ctx, name, fn)
}

func (s *Scheduler) execute(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := monitoring.StartSpan(ctx, "scheduler."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	monitoring.RecordSpanDuration(span, start)

	if err != nil {
		monitoring.RecordSpanError(span, err)
		monitoring.RecordSchedulerRun(name, "error")
		monitoring.RecordError("storage", "scheduler")
		s.logger.WithContext(ctx).WithField("job", name).WithError(err).Error("❌ Задача планировщика завершилась с ошибкой")
		return err
	}

	monitoring.RecordSchedulerRun(name, "ok")
	return nil
}

// KickExpired удаляет из канала пользователей с истекшей подпиской и снимает is_active.
// Если закрыть доступ не удалось, строка остается активной до следующего запуска.
// Если подписку продлили после выборки, is_active не снимается и доступ возвращается.
func (s *Scheduler) KickExpired(ctx context.Context) error {
	expired, err := s.subs.ListExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	s.logger.WithContext(ctx).WithField("count", len(expired)).Info("🔍 Найдены истекшие подписки")

	for _, sub := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithUser(ctx, sub.UserID)

		if err := s.gate.Close(ctx, sub.UserID); err != nil {
			monitoring.RecordSchedulerItem(JobKickExpired, "gate_error")
			log.WithError(err).Warn("⚠️ Не удалось удалить из канала, повторим при следующем запуске")
			continue
		}

		changed, err := s.subs.Deactivate(ctx, sub.UserID, s.now())
		if err != nil {
			monitoring.RecordSchedulerItem(JobKickExpired, "storage_error")
			log.WithError(err).Error("❌ Не удалось деактивировать подписку")
			continue
		}
		if !changed {
			// подписку продлили или деактивировали параллельно
			monitoring.RecordSchedulerItem(JobKickExpired, "skipped")
			s.restoreAccess(ctx, sub.UserID)
			continue
		}

		monitoring.RecordSubscription("expired")
		monitoring.RecordSchedulerItem(JobKickExpired, "kicked")

		if err := s.notifier.SubscriptionExpired(ctx, sub.UserID); err != nil {
			log.WithError(err).Warn("⚠️ Не удалось уведомить об окончании подписки")
		}
		log.Info("✅ Истекшая подписка обработана")
	}
	return nil
}

// restoreAccess возвращает в канал пользователя, чью подписку продлили между выборкой и удалением
func (s *Scheduler) restoreAccess(ctx context.Context, userID int64) {
	log := s.logger.WithUser(ctx, userID)
	active, err := s.subs.HasActive(ctx, userID, s.now())
	if err != nil {
		log.WithError(err).Error("❌ Не удалось проверить подписку после удаления из канала")
		return
	}
	if !active {
		return
	}
	if err := s.gate.Open(ctx, userID); err != nil {
		log.WithError(err).Error("❌ Не удалось вернуть доступ к каналу после продления")
		return
	}
	log.Info("🔓 Подписку продлили во время проверки, доступ возвращен")
}

// RemindExpiring напоминает о продлении тем, у кого подписка заканчивается через N дней.
// Окно шириной в сутки при ежедневном запуске дает одно напоминание на подписку.
func (s *Scheduler) RemindExpiring(ctx context.Context) error {
	from := s.now().Add(time.Duration(s.cfg.ExpiringReminderDays) * 24 * time.Hour)
	to := from.Add(24 * time.Hour)

	subs, err := s.subs.ListExpiringBetween(ctx, from, to)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.notifier.SubscriptionExpiring(ctx, sub.UserID, sub); err != nil {
			monitoring.RecordSchedulerItem(JobRemindExpiring, "send_error")
			s.logger.WithUser(ctx, sub.UserID).WithError(err).Warn("⚠️ Не удалось отправить напоминание о продлении")
			continue
		}
		monitoring.RecordSchedulerItem(JobRemindExpiring, "sent")
	}
	return nil
}

// RemindUnconverted напоминает тем, кто смотрел урок 48-72 часа назад и ничего не купил.
// Пользователям с активной подпиской напоминание помечается отправленным без отправки.
func (s *Scheduler) RemindUnconverted(ctx context.Context) error {
	now := s.now()
	rows, err := s.lessons.ListUnconverted(ctx, now.Add(-72*time.Hour), now.Add(-48*time.Hour))
	if err != nil {
		return err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithUser(ctx, row.UserID)

		active, err := s.subs.HasActive(ctx, row.UserID, now)
		if err != nil {
			log.WithError(err).Error("❌ Не удалось проверить подписку")
			continue
		}

		if active {
			monitoring.RecordSchedulerItem(JobRemindUnconverted, "converted")
		} else if err := s.notifier.UnconvertedReminder(ctx, row.UserID); err != nil {
			// пользователь, заблокировавший бота, за сутки окна его не разблокирует
			monitoring.RecordSchedulerItem(JobRemindUnconverted, "send_error")
			log.WithError(err).Warn("⚠️ Не удалось отправить напоминание после урока")
		} else {
			monitoring.RecordSchedulerItem(JobRemindUnconverted, "sent")
		}

		if err := s.lessons.MarkReminderSent(ctx, row.UserID); err != nil {
			log.WithError(err).Error("❌ Не удалось отметить напоминание")
		}
	}
	return nil
}

// SendDueLessonReminders отправляет отложенные напоминания после начала урока.
// Строка забирается (reminder_due_at обнуляется) до отправки, поэтому напоминание уходит не больше одного раза.
func (s *Scheduler) SendDueLessonReminders(ctx context.Context) error {
	now := s.now()
	ids, err := s.lessons.ClaimDueReminders(ctx, now, lessonReminderBatch)
	if err != nil {
		return err
	}

	for _, userID := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithUser(ctx, userID)

		active, err := s.subs.HasActive(ctx, userID, now)
		if err != nil {
			log.WithError(err).Error("❌ Не удалось проверить подписку")
			continue
		}
		if active {
			monitoring.RecordSchedulerItem(JobSendDueLessonReminders, "converted")
			continue
		}

		spanCtx, span := monitoring.StartSpan(ctx, "scheduler.lesson_reminder")
		monitoring.AddSpanAttributes(span, attribute.Int64("user_id", userID))
		if err := s.notifier.LessonReminder(spanCtx, userID); err != nil {
			monitoring.RecordSchedulerItem(JobSendDueLessonReminders, "send_error")
			log.WithError(err).Warn("⚠️ Не удалось отправить напоминание об уроке")
		} else {
			monitoring.RecordSchedulerItem(JobSendDueLessonReminders, "sent")
		}
		span.End()
	}
	return nil
}
