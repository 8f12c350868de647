package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/testutil"
)

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) ArchiveExport(ctx context.Context, filename string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := "exports/" + filename
	f.keys = append(f.keys, key)
	return key, nil
}

func TestAdminExportSubscribers(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser(domain.User{ID: 1, Username: "anna"})
	store.PutSubscription(domain.Subscription{UserID: 1, ExpiresAt: time.Now().Add(time.Hour), TariffDays: 30, IsActive: true})

	archiver := &fakeArchiver{}
	svc := NewAdminService(store.ReportRepo(), store.UserRepo(), archiver, monitoring.NewNopLogger())

	exp, err := svc.ExportSubscribers(context.Background())
	if err != nil {
		t.Fatalf("ExportSubscribers() error = %v", err)
	}
	if exp.Rows != 1 || exp.Data.Len() == 0 {
		t.Errorf("выгрузка = rows %d, size %d", exp.Rows, exp.Data.Len())
	}
	if exp.ArchiveKey == "" || len(archiver.keys) != 1 {
		t.Error("выгрузка должна архивироваться")
	}

	// сбой архива не ломает выгрузку
	archiver.err = errors.New("s3 unavailable")
	exp, err = svc.ExportSubscribers(context.Background())
	if err != nil || exp.ArchiveKey != "" {
		t.Errorf("ExportSubscribers() = %+v, %v", exp, err)
	}
}

func TestAdminBroadcast(t *testing.T) {
	store := testutil.NewStore()
	for _, id := range []int64{1, 2, 3} {
		store.AddUser(domain.User{ID: id})
	}
	notifier := &testutil.Notifier{}
	svc := NewAdminService(store.ReportRepo(), store.UserRepo(), nil, monitoring.NewNopLogger())
	svc.throttle = 0

	res, err := svc.Broadcast(context.Background(), notifier, "Новый эфир в пятницу")
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if res.Sent != 3 || res.Failed != 0 {
		t.Errorf("Broadcast() = %+v", res)
	}
	if notifier.Count("text", 2) != 1 {
		t.Error("пользователь 2 не получил рассылку")
	}

	notifier.Fail = true
	res, _ = svc.Broadcast(context.Background(), notifier, "повтор")
	if res.Sent != 0 || res.Failed != 3 {
		t.Errorf("ошибки доставки должны считаться, получено %+v", res)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.AddUser(domain.User{ID: 42})
	env.payments.ReconcileWebhook(ctx, successEvent(t, "user_42_days_30_1700000000", "1990"))

	svc := NewAdminService(env.store.ReportRepo(), env.store.UserRepo(), nil, monitoring.NewNopLogger())
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Users != 1 || stats.ActiveSubscriptions != 1 || stats.SuccessfulPayments != 1 || stats.Revenue != 199000 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestReviewSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewReviewService(env.cfg, env.store.VideoReviewRepo(), env.promos, monitoring.NewNopLogger())

	res, err := svc.Submit(ctx, 42, "video-file-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Created || res.Promocode.Code != "VIDEOOTZIV" || res.Promocode.DiscountAmount != 50000 {
		t.Errorf("Submit() = %+v", res)
	}

	again, err := svc.Submit(ctx, 42, "video-file-2")
	if err != nil {
		t.Fatalf("повторный Submit() error = %v", err)
	}
	if again.Created || again.Review.VideoFileID != "video-file-1" {
		t.Errorf("второй отзыв не должен сохраняться: %+v", again.Review)
	}

	approved, err := svc.Approve(ctx, res.Review.ID)
	if err != nil || approved == nil || !approved.IsApproved {
		t.Errorf("Approve() = %+v, %v", approved, err)
	}

	if _, err := svc.Submit(ctx, 43, ""); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Errorf("пустое видео должно отклоняться, получено %v", err)
	}
}

func TestSubscriptionGrantAndAccount(t *testing.T) {
	store := testutil.NewStore()
	gate := &testutil.Gate{}
	svc := NewSubscriptionService(store.SubscriptionRepo(), store.PaymentRepo(), gate, monitoring.NewNopLogger())
	ctx := context.Background()

	if _, err := svc.Grant(ctx, 5, 0); err == nil {
		t.Error("нулевой срок должен отклоняться")
	}

	sub, err := svc.Grant(ctx, 5, 14)
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !sub.IsActive || gate.OpenedFor(5) != 1 {
		t.Errorf("Grant() = %+v, opened %d", sub, gate.OpenedFor(5))
	}

	acc, err := svc.Account(ctx, 5)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if !acc.Active || acc.DaysLeft != 14 {
		t.Errorf("Account() = %+v", acc)
	}

	empty, _ := svc.Account(ctx, 6)
	if empty.Active || empty.DaysLeft != 0 || empty.Subscription != nil {
		t.Errorf("пустой аккаунт = %+v", empty)
	}
}

func TestLessonStart(t *testing.T) {
	store := testutil.NewStore()
	svc := NewLessonService(store.LessonRepo(), 10*time.Minute)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	p, err := svc.StartLesson(ctx, 42)
	if err != nil {
		t.Fatalf("StartLesson() error = %v", err)
	}
	if !p.FirstLessonStartedAt.Equal(now) || !p.ReminderDueAt.Equal(now.Add(10*time.Minute)) {
		t.Errorf("StartLesson() = %+v", p)
	}

	now = now.Add(time.Hour)
	p, _ = svc.StartLesson(ctx, 42)
	if !p.FirstLessonStartedAt.Equal(now.Add(-time.Hour)) {
		t.Error("время первого просмотра не должно перезаписываться")
	}

	if err := svc.JoinClicked(ctx, 42); err != nil {
		t.Fatalf("JoinClicked() error = %v", err)
	}
	if got := store.Lesson(42); !got.LessonClicked || got.ReminderDueAt != nil {
		t.Errorf("после перехода к тарифам напоминание снимается: %+v", got)
	}
}
