package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
)

const lessonColumns = `user_id, first_lesson_started_at, lesson_clicked, reminder_sent, reminder_due_at, created_at`

type LessonRepository struct {
	db *DB
}

func NewLessonRepository(db *DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func scanLesson(row interface{ Scan(...interface{}) error }) (*domain.LessonProgress, error) {
	p := &domain.LessonProgress{}
	var startedAt, dueAt sql.NullTime
	if err := row.Scan(&p.UserID, &startedAt, &p.LessonClicked, &p.ReminderSent, &dueAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.FirstLessonStartedAt = timePtr(startedAt)
	p.ReminderDueAt = timePtr(dueAt)
	return p, nil
}

// Start фиксирует просмотр урока. Время первого просмотра не перезаписывается,
// напоминание переносится на dueAt, пока пользователь не перешел к тарифам.
func (r *LessonRepository) Start(ctx context.Context, userID int64, now, dueAt time.Time) (*domain.LessonProgress, error) {
	query := `
		INSERT INTO lesson_progress (user_id, first_lesson_started_at, reminder_due_at, created_at)
		VALUES ($1, $2, $3, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			first_lesson_started_at = COALESCE(lesson_progress.first_lesson_started_at, EXCLUDED.first_lesson_started_at),
			reminder_due_at = CASE WHEN lesson_progress.lesson_clicked THEN NULL ELSE EXCLUDED.reminder_due_at END
		RETURNING ` + lessonColumns

	p, err := scanLesson(r.db.QueryRowContext(ctx, query, userID, now, dueAt))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения прогресса урока: %w", err)
	}
	return p, nil
}

func (r *LessonRepository) Get(ctx context.Context, userID int64) (*domain.LessonProgress, error) {
	query := `SELECT ` + lessonColumns + ` FROM lesson_progress WHERE user_id = $1`

	p, err := scanLesson(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прогресса урока: %w", err)
	}
	return p, nil
}

func (r *LessonRepository) MarkClicked(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_clicked)
		VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET lesson_clicked = TRUE, reminder_due_at = NULL`, userID)
	if err != nil {
		return fmt.Errorf("ошибка отметки перехода к тарифам: %w", err)
	}
	return nil
}

// ClaimDueReminders забирает созревшие напоминания. SKIP LOCKED не дает двум
// экземплярам забрать одну и ту же строку.
func (r *LessonRepository) ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE lesson_progress SET reminder_due_at = NULL
		WHERE user_id IN (
			SELECT user_id FROM lesson_progress
			WHERE reminder_due_at IS NOT NULL AND reminder_due_at <= $1 AND lesson_clicked = FALSE
			ORDER BY reminder_due_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING user_id`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки напоминаний: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUnconverted возвращает тех, кто начал урок в [startedFrom, startedTo) и еще не получал напоминание
func (r *LessonRepository) ListUnconverted(ctx context.Context, startedFrom, startedTo time.Time) ([]*domain.LessonProgress, error) {
	query := `SELECT ` + lessonColumns + ` FROM lesson_progress
		WHERE first_lesson_started_at >= $1 AND first_lesson_started_at < $2 AND reminder_sent = FALSE
		ORDER BY first_lesson_started_at`

	rows, err := r.db.QueryContext(ctx, query, startedFrom, startedTo)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки неконвертированных: %w", err)
	}
	defer rows.Close()

	var result []*domain.LessonProgress
	for rows.Next() {
		p, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *LessonRepository) MarkReminderSent(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE lesson_progress SET reminder_sent = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка отметки напоминания: %w", err)
	}
	return nil
}
