package service

import (
	"context"
	"time"

	"breathing_club_bot/internal/domain"
)

type LessonService struct {
	repo          domain.LessonRepository
	reminderDelay time.Duration
	now           func() time.Time
}

func NewLessonService(repo domain.LessonRepository, reminderDelay time.Duration) *LessonService {
	return &LessonService{
		repo:          repo,
		reminderDelay: reminderDelay,
		now:           time.Now,
	}
}

// StartLesson отмечает просмотр бесплатного урока и ставит отложенное напоминание.
// Напоминание хранится в базе, его отправит планировщик.
func (s *LessonService) StartLesson(ctx context.Context, userID int64) (*domain.LessonProgress, error) {
	now := s.now()
	return s.repo.Start(ctx, userID, now, now.Add(s.reminderDelay))
}

// JoinClicked отмечает переход от урока к тарифам, отложенное напоминание больше не нужно
func (s *LessonService) JoinClicked(ctx context.Context, userID int64) error {
	return s.repo.MarkClicked(ctx, userID)
}
