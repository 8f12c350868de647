package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/infrastructure/prodamus"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/testutil"
)

type testEnv struct {
	cfg       *config.Config
	store     *testutil.Store
	gate      *testutil.Gate
	notifier  *testutil.Notifier
	promos    *PromocodeService
	referrals *ReferralService
	payments  *PaymentService
	users     *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		BotUsername:         "breathing_club_bot",
		ProductName:         "Дыхательный клуб",
		ReferralBonusDays:   30,
		VideoReviewPromo:    "VIDEOOTZIV",
		VideoReviewDiscount: 50000,
		Tariffs: []domain.Tariff{
			{Days: 30, Price: 199000, Title: "1 месяц"},
			{Days: 90, Price: 477000, Title: "3 месяца"},
		},
	}
	logger := monitoring.NewNopLogger()
	store := testutil.NewStore()
	gate := &testutil.Gate{}
	notifier := &testutil.Notifier{}

	promos := NewPromocodeService(store.PromocodeRepo(), logger)
	referrals := NewReferralService(store.ReferralRepo(), store.SubscriptionRepo(), gate, notifier, cfg.ReferralBonusDays, logger)
	links := prodamus.NewLinkBuilder("pay.example.com", "secret", "club-breathing")

	return &testEnv{
		cfg:       cfg,
		store:     store,
		gate:      gate,
		notifier:  notifier,
		promos:    promos,
		referrals: referrals,
		payments:  NewPaymentService(cfg, store.PaymentRepo(), promos, referrals, gate, notifier, links, logger),
		users:     NewUserService(cfg, store.UserRepo(), store.AgreementRepo(), referrals, logger),
	}
}

func successEvent(t *testing.T, raw, sum string) WebhookEvent {
	t.Helper()
	order, err := prodamus.DecodeOrderID(raw)
	if err != nil {
		t.Fatalf("DecodeOrderID(%q) error = %v", raw, err)
	}
	return WebhookEvent{RawOrderID: raw, Order: order, Status: WebhookStatusSuccess, PaymentID: "pm-1", Sum: sum}
}

func TestReconcileWebhookSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := time.Now()

	ev := successEvent(t, "user_42_days_30_1700000000", "1990.00")
	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("ReconcileWebhook() error = %v", err)
	}

	p := env.store.Payment("user_42_days_30_1700000000")
	if p == nil || p.Status != domain.PaymentStatusSuccess {
		t.Fatalf("платеж должен быть success, получено %+v", p)
	}
	if p.Amount != 199000 || p.ProviderPaymentID != "pm-1" {
		t.Errorf("amount=%d provider_payment_id=%q", p.Amount, p.ProviderPaymentID)
	}

	sub := env.store.Subscription(42)
	if sub == nil || !sub.IsActive {
		t.Fatalf("подписка должна быть активна, получено %+v", sub)
	}
	want := before.Add(30 * 24 * time.Hour)
	if sub.ExpiresAt.Before(want) || sub.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expires_at = %v, want ≈ %v", sub.ExpiresAt, want)
	}

	if env.gate.OpenedFor(42) != 1 {
		t.Errorf("канал должен открыться один раз, открыт %d", env.gate.OpenedFor(42))
	}
	if env.notifier.Count("payment_succeeded", 42) != 1 {
		t.Error("подтверждение оплаты не отправлено")
	}
}

func TestReconcileWebhookDuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := successEvent(t, "user_42_days_30_1700000000", "1990")
	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("первая доставка: %v", err)
	}
	first := env.store.Subscription(42).ExpiresAt

	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("повторная доставка: %v", err)
	}

	if got := env.store.Subscription(42).ExpiresAt; !got.Equal(first) {
		t.Errorf("повторная доставка продлила подписку: %v -> %v", first, got)
	}
	if env.store.PaymentCount() != 1 {
		t.Errorf("ожидался один платеж, получено %d", env.store.PaymentCount())
	}
	if env.notifier.Count("payment_succeeded", 42) != 1 || env.gate.OpenedFor(42) != 1 {
		t.Error("побочные эффекты повторились")
	}
}

func TestReconcileWebhookPendingRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	link, err := env.payments.CreatePaymentLink(ctx, 42, 30, "")
	if err != nil {
		t.Fatalf("CreatePaymentLink() error = %v", err)
	}
	if p := env.store.Payment(link.OrderID); p == nil || p.Status != domain.PaymentStatusPending {
		t.Fatalf("ожидался pending-платеж, получено %+v", p)
	}

	// сумма не пришла, pending-запись сохраняет свою
	ev := successEvent(t, link.OrderID, "")
	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("ReconcileWebhook() error = %v", err)
	}

	p := env.store.Payment(link.OrderID)
	if p.Status != domain.PaymentStatusSuccess || p.Amount != 199000 {
		t.Errorf("платеж = %+v", p)
	}
	if env.store.PaymentCount() != 1 {
		t.Errorf("pending-запись должна обновиться, а не дублироваться")
	}
}

func TestReconcileWebhookFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := successEvent(t, "user_42_days_30_1700000000", "1990")
	ev.Status = WebhookStatusFailed
	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("ReconcileWebhook() error = %v", err)
	}

	if p := env.store.Payment(ev.RawOrderID); p == nil || p.Status != domain.PaymentStatusFailed {
		t.Errorf("платеж должен быть failed, получено %+v", p)
	}
	if env.store.Subscription(42) != nil {
		t.Error("подписка не должна создаваться")
	}
	if len(env.gate.Opened) != 0 {
		t.Error("канал не должен открываться")
	}
	if env.notifier.Count("payment_failed", 42) != 1 {
		t.Error("уведомление о неудаче не отправлено")
	}
}

func TestReconcileWebhookFailedAfterSuccessKeepsSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := successEvent(t, "user_42_days_30_1700000000", "1990")
	env.payments.ReconcileWebhook(ctx, ev)

	ev.Status = WebhookStatusFailed
	if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
		t.Fatalf("ReconcileWebhook() error = %v", err)
	}
	if p := env.store.Payment(ev.RawOrderID); p.Status != domain.PaymentStatusSuccess {
		t.Errorf("успешный платеж не должен становиться failed, статус %s", p.Status)
	}
	if got := env.notifier.Count("payment_failed", 42); got != 0 {
		t.Errorf("после успешной оплаты уведомление о неудаче отправлено %d раз", got)
	}
	if got := env.notifier.Count("payment_succeeded", 42); got != 1 {
		t.Errorf("уведомлений об успехе = %d, want 1", got)
	}
}

func TestReconcileWebhookFailedDuplicateNotifiesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := successEvent(t, "user_42_days_30_1700000000", "1990")
	ev.Status = WebhookStatusFailed
	for i := 0; i < 2; i++ {
		if err := env.payments.ReconcileWebhook(ctx, ev); err != nil {
			t.Fatalf("ReconcileWebhook() error = %v", err)
		}
	}
	if got := env.notifier.Count("payment_failed", 42); got != 1 {
		t.Errorf("уведомлений о неудаче = %d, want 1", got)
	}
}

func TestReconcileWebhookUnknownStatus(t *testing.T) {
	env := newTestEnv(t)

	ev := successEvent(t, "user_42_days_30_1700000000", "1990")
	ev.Status = "refund"
	if err := env.payments.ReconcileWebhook(context.Background(), ev); err != nil {
		t.Fatalf("неизвестный статус должен подтверждаться, error = %v", err)
	}
	if env.store.PaymentCount() != 0 || len(env.notifier.Events) != 0 {
		t.Error("неизвестный статус не должен ничего менять")
	}
}

func TestReconcileWebhookStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	storageErr := errors.New("connection reset")
	env.store.Err = storageErr

	err := env.payments.ReconcileWebhook(context.Background(), successEvent(t, "user_42_days_30_1700000000", "1990"))
	if !errors.Is(err, storageErr) {
		t.Errorf("ожидалась ошибка хранилища, получено %v", err)
	}
}

func TestReconcileWebhookDownstreamFailuresSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.gate.FailOpen = true
	env.notifier.Fail = true

	err := env.payments.ReconcileWebhook(context.Background(), successEvent(t, "user_42_days_30_1700000000", "1990"))
	if err != nil {
		t.Fatalf("сбой канала и уведомлений не должен ломать обработку: %v", err)
	}
	if sub := env.store.Subscription(42); sub == nil || !sub.IsActive {
		t.Error("подписка должна быть продлена несмотря на сбои")
	}
}

func TestReferralBonusGrantedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.store.AddUser(domain.User{ID: 9})
	if _, err := env.users.Start(ctx, &domain.User{ID: 10, FirstName: "Гость"}, "ref_9"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if env.store.Referral(10) == nil {
		t.Fatal("приглашение должно быть зарегистрировано")
	}

	before := time.Now()
	for _, raw := range []string{"user_10_days_30_1700000000", "user_10_days_30_1700000500"} {
		if err := env.payments.ReconcileWebhook(ctx, successEvent(t, raw, "1990")); err != nil {
			t.Fatalf("ReconcileWebhook(%s) error = %v", raw, err)
		}
	}

	sub := env.store.Subscription(9)
	if sub == nil {
		t.Fatal("пригласивший должен получить подписку")
	}
	want := before.Add(30 * 24 * time.Hour)
	if sub.ExpiresAt.Before(want) || sub.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("бонус выдан не ровно один раз: expires_at = %v", sub.ExpiresAt)
	}
	if ref := env.store.Referral(10); !ref.IsBonusGiven || ref.BonusGivenAt == nil {
		t.Errorf("referral = %+v", ref)
	}
	if env.notifier.Count("referral_bonus", 9) != 1 {
		t.Error("пригласивший должен быть уведомлен один раз")
	}
}

func TestGrantBonusNoopWhenAlreadyGiven(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.store.ReferralRepo().Create(ctx, 9, 10)

	granted, err := env.referrals.GrantBonus(ctx, 10)
	if err != nil || !granted {
		t.Fatalf("первый вызов: granted=%v err=%v", granted, err)
	}
	granted, err = env.referrals.GrantBonus(ctx, 10)
	if err != nil || granted {
		t.Fatalf("второй вызов должен быть no-op: granted=%v err=%v", granted, err)
	}

	granted, _ = env.referrals.GrantBonus(ctx, 777)
	if granted {
		t.Error("без приглашения бонуса быть не может")
	}
}

func TestPromocodeSecondUseReturnsBaseAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.PutPromocode(domain.Promocode{Code: "SALE", DiscountAmount: 50000, IsActive: true})

	res, err := env.promos.Apply(ctx, 42, " sale ", 199000)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Applied() || res.FinalAmount != 149000 {
		t.Fatalf("первое применение: %+v", res)
	}

	if err := env.promos.RecordUsage(ctx, 42, "SALE"); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	res, err = env.promos.Apply(ctx, 42, "SALE", 199000)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Applied() || res.FinalAmount != 199000 || !errors.Is(res.Reason, domain.ErrPromocodeAlreadyUsed) {
		t.Errorf("повторное применение: %+v", res)
	}
}

func TestPromocodeApplyReasons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	one := 1
	env.store.PutPromocode(domain.Promocode{Code: "FULL", DiscountAmount: 50000, IsActive: true, MaxUses: &one, CurrentUses: 1})
	env.store.PutPromocode(domain.Promocode{Code: "OFF", DiscountAmount: 50000, IsActive: false})
	env.store.PutPromocode(domain.Promocode{Code: "HUGE", DiscountAmount: 500000, IsActive: true})

	tests := []struct {
		code   string
		reason error
		final  int64
	}{
		{"FULL", domain.ErrPromocodeExhausted, 199000},
		{"OFF", domain.ErrPromocodeNotFound, 199000},
		{"MISSING", domain.ErrPromocodeNotFound, 199000},
		{"BAD_CODE", domain.ErrPromocodeInvalid, 199000},
		{"HUGE", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			res, err := env.promos.Apply(ctx, 1, tt.code, 199000)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !errors.Is(res.Reason, tt.reason) || res.FinalAmount != tt.final {
				t.Errorf("Apply(%s) = reason %v final %d, want %v %d", tt.code, res.Reason, res.FinalAmount, tt.reason, tt.final)
			}
		})
	}
}

func TestWebhookWithPromoRecordsUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.PutPromocode(domain.Promocode{Code: "SALE", DiscountAmount: 50000, IsActive: true})

	link, err := env.payments.CreatePaymentLink(ctx, 42, 30, "sale")
	if err != nil {
		t.Fatalf("CreatePaymentLink() error = %v", err)
	}
	if link.Amount != 149000 || !strings.HasSuffix(link.OrderID, "_promo_SALE") {
		t.Fatalf("ссылка = %+v", link)
	}
	if !strings.Contains(link.URL, "products%5B0%5D%5Bprice%5D=1490") {
		t.Errorf("в ссылке должна быть цена со скидкой: %s", link.URL)
	}
	// до оплаты использование не записывается
	if env.store.Promocode("SALE").CurrentUses != 0 {
		t.Fatal("использование не должно фиксироваться при создании ссылки")
	}

	if err := env.payments.ReconcileWebhook(ctx, successEvent(t, link.OrderID, "1490")); err != nil {
		t.Fatalf("ReconcileWebhook() error = %v", err)
	}
	if got := env.store.Promocode("SALE").CurrentUses; got != 1 {
		t.Errorf("current_uses = %d, want 1", got)
	}
}

func TestCreatePaymentLinkUnknownTariff(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.payments.CreatePaymentLink(context.Background(), 42, 7, "")
	if !errors.Is(err, domain.ErrUnknownTariff) {
		t.Errorf("ожидалась ErrUnknownTariff, получено %v", err)
	}
}

func TestTelegramPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	invoice, err := env.payments.CreateInvoice(ctx, 42, 90, "")
	if err != nil {
		t.Fatalf("CreateInvoice() error = %v", err)
	}
	if invoice.Amount != 477000 {
		t.Errorf("amount = %d", invoice.Amount)
	}
	if err := env.payments.ValidateInvoicePayload(42, invoice.Payload); err != nil {
		t.Errorf("ValidateInvoicePayload() error = %v", err)
	}
	if err := env.payments.ValidateInvoicePayload(43, invoice.Payload); err == nil {
		t.Error("чужой payload должен отклоняться")
	}

	if err := env.payments.ApplyTelegramPayment(ctx, 42, invoice.Payload, 477000, "charge-1"); err != nil {
		t.Fatalf("ApplyTelegramPayment() error = %v", err)
	}
	p := env.store.Payment(invoice.Payload)
	if p.Status != domain.PaymentStatusSuccess || p.Provider != domain.PaymentProviderTelegram || p.ProviderPaymentID != "charge-1" {
		t.Errorf("платеж = %+v", p)
	}
	if sub := env.store.Subscription(42); sub == nil || sub.TariffDays != 90 {
		t.Errorf("подписка = %+v", sub)
	}

	if err := env.payments.ApplyTelegramPayment(ctx, 7, invoice.Payload, 477000, "charge-2"); !errors.Is(err, domain.ErrMalformedOrderID) {
		t.Errorf("платеж с чужим payload должен отклоняться, получено %v", err)
	}
}

func TestUserStartReferralRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.AddUser(domain.User{ID: 9})

	tests := []struct {
		name     string
		userID   int64
		payload  string
		referred bool
	}{
		{"самоприглашение", 11, "ref_11", false},
		{"несуществующий пригласивший", 12, "ref_999", false},
		{"мусор в payload", 13, "ref_abc", false},
		{"без payload", 14, "", false},
		{"валидное приглашение", 15, "ref_9", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.users.Start(ctx, &domain.User{ID: tt.userID}, tt.payload)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if !res.Created || res.Referred != tt.referred {
				t.Errorf("Start() = %+v, want referred=%v", res, tt.referred)
			}
		})
	}

	// повторный /start по ссылке не делает существующего пользователя приглашенным
	env.store.AddUser(domain.User{ID: 20})
	res, _ := env.users.Start(ctx, &domain.User{ID: 20}, "ref_9")
	if res.Referred {
		t.Error("существующий пользователь не может стать приглашенным")
	}
}

func TestAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.users.Start(ctx, &domain.User{ID: 5}, "")
	if err != nil || res.Agreed {
		t.Fatalf("новый пользователь не должен быть согласен: %+v %v", res, err)
	}
	if err := env.users.AcceptAgreement(ctx, 5); err != nil {
		t.Fatalf("AcceptAgreement() error = %v", err)
	}
	if agreed, _ := env.users.Agreed(ctx, 5); !agreed {
		t.Error("после принятия документов пользователь должен быть согласен")
	}
}

func TestReferralLink(t *testing.T) {
	env := newTestEnv(t)
	if got := env.users.ReferralLink(42); got != "https://t.me/breathing_club_bot?start=ref_42" {
		t.Errorf("ReferralLink() = %s", got)
	}
}
