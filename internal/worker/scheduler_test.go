package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/testutil"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store     *testutil.Store
	gate      *testutil.Gate
	notifier  *testutil.Notifier
	scheduler *Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewStore()
	gate := &testutil.Gate{}
	notifier := &testutil.Notifier{}
	cfg := &config.Config{
		ExpiringReminderDays:    3,
		KickExpiredCron:         "0 0 * * *",
		ExpiringReminderCron:    "0 10 * * *",
		UnconvertedReminderCron: "0 * * * *",
		LessonReminderPoll:      time.Minute,
	}
	s := NewScheduler(cfg, store.SubscriptionRepo(), store.LessonRepo(), gate, notifier, monitoring.NewNopLogger())
	s.now = func() time.Time { return testNow }
	return &testEnv{store: store, gate: gate, notifier: notifier, scheduler: s}
}

func TestKickExpired(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutSubscription(domain.Subscription{UserID: 7, ExpiresAt: testNow.Add(-time.Hour), IsActive: true, TariffDays: 30})
	env.store.PutSubscription(domain.Subscription{UserID: 8, ExpiresAt: testNow.Add(48 * time.Hour), IsActive: true, TariffDays: 30})

	ctx := context.Background()
	if err := env.scheduler.KickExpired(ctx); err != nil {
		t.Fatalf("KickExpired: %v", err)
	}

	if got := env.gate.ClosedFor(7); got != 1 {
		t.Errorf("user 7 closed %d times, want 1", got)
	}
	if got := env.gate.ClosedFor(8); got != 0 {
		t.Errorf("user 8 closed %d times, want 0", got)
	}
	if sub := env.store.Subscription(7); sub.IsActive {
		t.Error("user 7 subscription still active")
	}
	if got := env.notifier.Count("expired", 7); got != 1 {
		t.Errorf("expired notifications = %d, want 1", got)
	}

	// повторный запуск ничего не делает
	if err := env.scheduler.KickExpired(ctx); err != nil {
		t.Fatalf("second KickExpired: %v", err)
	}
	if got := env.gate.ClosedFor(7); got != 1 {
		t.Errorf("user 7 closed %d times after rerun, want 1", got)
	}
	if got := env.notifier.Count("expired", 7); got != 1 {
		t.Errorf("expired notifications after rerun = %d, want 1", got)
	}
}

func TestKickExpiredGateFailureKeepsRow(t *testing.T) {
	env := newTestEnv(t)
	env.gate.FailClose = map[int64]bool{7: true}
	env.store.PutSubscription(domain.Subscription{UserID: 7, ExpiresAt: testNow.Add(-time.Hour), IsActive: true})
	env.store.PutSubscription(domain.Subscription{UserID: 9, ExpiresAt: testNow.Add(-2 * time.Hour), IsActive: true})

	if err := env.scheduler.KickExpired(context.Background()); err != nil {
		t.Fatalf("KickExpired: %v", err)
	}

	if !env.store.Subscription(7).IsActive {
		t.Error("user 7 must stay active until the channel kick succeeds")
	}
	if env.notifier.Count("expired", 7) != 0 {
		t.Error("user 7 must not be notified")
	}
	if env.store.Subscription(9).IsActive {
		t.Error("user 9 must be deactivated")
	}

	env.gate.FailClose = nil
	if err := env.scheduler.KickExpired(context.Background()); err != nil {
		t.Fatalf("retry KickExpired: %v", err)
	}
	if env.store.Subscription(7).IsActive {
		t.Error("user 7 must be deactivated on retry")
	}
}

// renewingGate имитирует оплату, пришедшую между выборкой истекших подписок и их деактивацией
type renewingGate struct {
	*testutil.Gate
	store *testutil.Store
}

func (g *renewingGate) Close(ctx context.Context, userID int64) error {
	payment := &domain.Payment{
		UserID:           userID,
		Amount:           199000,
		Currency:         domain.CurrencyRUB,
		SubscriptionDays: 30,
		Provider:         domain.PaymentProviderProdamus,
		PaymentID:        "7_30_1741600000",
	}
	if _, _, err := g.store.PaymentRepo().MarkSucceeded(ctx, payment, testNow); err != nil {
		return err
	}
	return g.Gate.Close(ctx, userID)
}

func TestKickExpiredKeepsRenewedSubscription(t *testing.T) {
	env := newTestEnv(t)
	gate := &renewingGate{Gate: env.gate, store: env.store}
	env.scheduler.gate = gate
	env.store.PutSubscription(domain.Subscription{UserID: 7, ExpiresAt: testNow.Add(-time.Hour), IsActive: true, TariffDays: 30})

	if err := env.scheduler.KickExpired(context.Background()); err != nil {
		t.Fatalf("KickExpired: %v", err)
	}

	sub := env.store.Subscription(7)
	if !sub.IsActive {
		t.Fatal("renewed subscription must stay active")
	}
	if !sub.ExpiresAt.After(testNow) {
		t.Errorf("expires_at = %v, want after %v", sub.ExpiresAt, testNow)
	}
	if got := env.notifier.Count("expired", 7); got != 0 {
		t.Errorf("expired notifications = %d, want 0", got)
	}
	if got := env.gate.OpenedFor(7); got != 1 {
		t.Errorf("channel reopened %d times, want 1", got)
	}
}

func TestKickExpiredStorageError(t *testing.T) {
	env := newTestEnv(t)
	env.store.Err = errors.New("db down")
	if err := env.scheduler.KickExpired(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRemindExpiring(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		userID    int64
		expiresAt time.Time
		active    bool
		want      int
	}{
		{1, testNow.Add(3*24*time.Hour + time.Hour), true, 1},
		{2, testNow.Add(3 * 24 * time.Hour), true, 1},
		{3, testNow.Add(4 * 24 * time.Hour), true, 0},
		{4, testNow.Add(2 * 24 * time.Hour), true, 0},
		{5, testNow.Add(3*24*time.Hour + time.Hour), false, 0},
	}
	for _, tt := range tests {
		env.store.PutSubscription(domain.Subscription{UserID: tt.userID, ExpiresAt: tt.expiresAt, IsActive: tt.active})
	}

	if err := env.scheduler.RemindExpiring(context.Background()); err != nil {
		t.Fatalf("RemindExpiring: %v", err)
	}
	for _, tt := range tests {
		if got := env.notifier.Count("expiring", tt.userID); got != tt.want {
			t.Errorf("user %d: expiring reminders = %d, want %d", tt.userID, got, tt.want)
		}
	}
}

func TestRemindUnconverted(t *testing.T) {
	env := newTestEnv(t)
	started := func(ago time.Duration) *time.Time {
		ts := testNow.Add(-ago)
		return &ts
	}
	env.store.PutLesson(domain.LessonProgress{UserID: 1, FirstLessonStartedAt: started(60 * time.Hour)})
	env.store.PutLesson(domain.LessonProgress{UserID: 2, FirstLessonStartedAt: started(60 * time.Hour)})
	env.store.PutLesson(domain.LessonProgress{UserID: 3, FirstLessonStartedAt: started(10 * time.Hour)})
	env.store.PutLesson(domain.LessonProgress{UserID: 4, FirstLessonStartedAt: started(60 * time.Hour), ReminderSent: true})
	env.store.PutSubscription(domain.Subscription{UserID: 2, ExpiresAt: testNow.Add(10 * 24 * time.Hour), IsActive: true})

	ctx := context.Background()
	if err := env.scheduler.RemindUnconverted(ctx); err != nil {
		t.Fatalf("RemindUnconverted: %v", err)
	}

	if got := env.notifier.Count("unconverted_reminder", 1); got != 1 {
		t.Errorf("user 1 reminders = %d, want 1", got)
	}
	for _, id := range []int64{2, 3, 4} {
		if got := env.notifier.Count("unconverted_reminder", id); got != 0 {
			t.Errorf("user %d reminders = %d, want 0", id, got)
		}
	}
	if !env.store.Lesson(1).ReminderSent || !env.store.Lesson(2).ReminderSent {
		t.Error("users 1 and 2 must be marked as reminded")
	}
	if env.store.Lesson(3).ReminderSent {
		t.Error("user 3 is outside the window")
	}

	if err := env.scheduler.RemindUnconverted(ctx); err != nil {
		t.Fatalf("second RemindUnconverted: %v", err)
	}
	if got := env.notifier.Count("unconverted_reminder", 1); got != 1 {
		t.Errorf("user 1 reminders after rerun = %d, want 1", got)
	}
}

func TestSendDueLessonReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lessons := env.store.LessonRepo()

	if _, err := lessons.Start(ctx, 1, testNow.Add(-20*time.Minute), testNow.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := lessons.Start(ctx, 2, testNow, testNow.Add(10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := lessons.Start(ctx, 3, testNow.Add(-20*time.Minute), testNow.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := lessons.MarkClicked(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := lessons.Start(ctx, 4, testNow.Add(-20*time.Minute), testNow.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	env.store.PutSubscription(domain.Subscription{UserID: 4, ExpiresAt: testNow.Add(24 * time.Hour), IsActive: true})

	if err := env.scheduler.SendDueLessonReminders(ctx); err != nil {
		t.Fatalf("SendDueLessonReminders: %v", err)
	}

	want := map[int64]int{1: 1, 2: 0, 3: 0, 4: 0}
	for id, n := range want {
		if got := env.notifier.Count("lesson_reminder", id); got != n {
			t.Errorf("user %d lesson reminders = %d, want %d", id, got, n)
		}
	}

	if err := env.scheduler.SendDueLessonReminders(ctx); err != nil {
		t.Fatalf("second SendDueLessonReminders: %v", err)
	}
	if got := env.notifier.Count("lesson_reminder", 1); got != 1 {
		t.Errorf("user 1 reminded %d times, want 1", got)
	}
}

func TestRunOnceReportsFirstError(t *testing.T) {
	env := newTestEnv(t)
	env.store.Err = errors.New("db down")
	if err := env.scheduler.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from RunOnce")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	env := newTestEnv(t)
	env.scheduler.cfg.KickExpiredCron = "not a cron"
	if err := env.scheduler.Start(context.Background()); err == nil {
		env.scheduler.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}
