package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/infrastructure/export"
	"breathing_club_bot/internal/monitoring"
)

// Messenger отправляет произвольный текст пользователю
type Messenger interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// ExportArchiver сохраняет копию выгрузки во внешнем хранилище
type ExportArchiver interface {
	ArchiveExport(ctx context.Context, filename string, data []byte) (string, error)
}

// Export готовая выгрузка подписчиков
type Export struct {
	Filename   string
	Data       *bytes.Buffer
	Rows       int
	ArchiveKey string
}

// BroadcastResult итог рассылки
type BroadcastResult struct {
	Sent   int
	Failed int
}

type AdminService struct {
	reports  domain.ReportRepository
	users    domain.UserRepository
	archiver ExportArchiver
	logger   *monitoring.Logger
	now      func() time.Time
	// пауза между сообщениями рассылки, чтобы не упереться в лимиты Telegram
	throttle time.Duration
}

// NewAdminService создает сервис админ-панели. archiver может быть nil.
func NewAdminService(reports domain.ReportRepository, users domain.UserRepository, archiver ExportArchiver, logger *monitoring.Logger) *AdminService {
	return &AdminService{
		reports:  reports,
		users:    users,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
		throttle: 40 * time.Millisecond,
	}
}

func (s *AdminService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.reports.Stats(ctx, s.now())
}

// ActiveSubscribers последние активные подписчики для просмотра в чате
func (s *AdminService) ActiveSubscribers(ctx context.Context, limit int) ([]domain.SubscriberRow, error) {
	return s.reports.Subscribers(ctx, true, limit)
}

// ExportSubscribers выгружает всех подписчиков в xlsx. Ошибка архивации не мешает выгрузке.
func (s *AdminService) ExportSubscribers(ctx context.Context) (*Export, error) {
	rows, err := s.reports.Subscribers(ctx, false, 0)
	if err != nil {
		return nil, err
	}

	buf, err := export.SubscribersXLSX(rows)
	if err != nil {
		return nil, err
	}

	result := &Export{
		Filename: fmt.Sprintf("subscribers_%s.xlsx", s.now().Format("2006-01-02_15-04")),
		Data:     buf,
		Rows:     len(rows),
	}

	if s.archiver != nil {
		key, err := s.archiver.ArchiveExport(ctx, result.Filename, buf.Bytes())
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("⚠️ Не удалось сохранить выгрузку в S3")
		} else {
			result.ArchiveKey = key
		}
	}
	return result, nil
}

// Broadcast рассылает текст всем пользователям. Ошибки отдельных отправок не прерывают рассылку.
func (s *AdminService) Broadcast(ctx context.Context, messenger Messenger, text string) (*BroadcastResult, error) {
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &BroadcastResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := messenger.SendText(ctx, id, text); err != nil {
			result.Failed++
			s.logger.WithUser(ctx, id).WithError(err).Debug("Рассылка: сообщение не доставлено")
			continue
		}
		result.Sent++

		if s.throttle > 0 {
			time.Sleep(s.throttle)
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"sent":   result.Sent,
		"failed": result.Failed,
	}).Info("📣 Рассылка завершена")
	return result, nil
}
