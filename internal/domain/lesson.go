package domain

import (
	"context"
	"time"
)

// LessonProgress прогресс по бесплатному уроку.
// ReminderDueAt хранит время отложенного напоминания, чтобы оно пережило рестарт процесса.
type LessonProgress struct {
	UserID               int64      `json:"user_id"`
	FirstLessonStartedAt *time.Time `json:"first_lesson_started_at,omitempty"`
	LessonClicked        bool       `json:"lesson_clicked"`
	ReminderSent         bool       `json:"reminder_sent"`
	ReminderDueAt        *time.Time `json:"reminder_due_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type LessonRepository interface {
	// Start фиксирует первый просмотр урока (повторные не сдвигают время) и ставит напоминание на dueAt
	Start(ctx context.Context, userID int64, now, dueAt time.Time) (*LessonProgress, error)
	Get(ctx context.Context, userID int64) (*LessonProgress, error)
	// MarkClicked отмечает переход к тарифам и снимает отложенное напоминание
	MarkClicked(ctx context.Context, userID int64) error
	// ClaimDueReminders забирает созревшие напоминания, обнуляя reminder_due_at, и возвращает пользователей
	ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ListUnconverted(ctx context.Context, startedFrom, startedTo time.Time) ([]*LessonProgress, error)
	MarkReminderSent(ctx context.Context, userID int64) error
}
