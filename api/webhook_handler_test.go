package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/infrastructure/prodamus"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/service"
	"breathing_club_bot/internal/testutil"
)

const testSecret = "test-secret"

type webhookEnv struct {
	store    *testutil.Store
	gate     *testutil.Gate
	notifier *testutil.Notifier
	server   *httptest.Server
}

func newWebhookEnv(t *testing.T) *webhookEnv {
	t.Helper()

	cfg := &config.Config{
		ProductName:       "Дыхательный клуб",
		ReferralBonusDays: 30,
		Tariffs: []domain.Tariff{
			{Days: 30, Price: 199000, Title: "1 месяц"},
		},
	}
	logger := monitoring.NewNopLogger()
	store := testutil.NewStore()
	gate := &testutil.Gate{}
	notifier := &testutil.Notifier{}

	promos := service.NewPromocodeService(store.PromocodeRepo(), logger)
	referrals := service.NewReferralService(store.ReferralRepo(), store.SubscriptionRepo(), gate, notifier, cfg.ReferralBonusDays, logger)
	links := prodamus.NewLinkBuilder("pay.example.com", testSecret, "club-breathing")
	payments := service.NewPaymentService(cfg, store.PaymentRepo(), promos, referrals, gate, notifier, links, logger)

	srv := NewServer("0", logger)
	srv.SetupRoutes(NewWebhookHandler(payments, testSecret, logger), nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &webhookEnv{store: store, gate: gate, notifier: notifier, server: ts}
}

func signedForm(fields map[string]string) url.Values {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(prodamus.SignField, prodamus.Sign(fields, testSecret))
	return form
}

func (e *webhookEnv) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/prodamus-webhook", "application/x-www-form-urlencoded", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestWebhookSuccess(t *testing.T) {
	env := newWebhookEnv(t)
	before := time.Now()

	form := signedForm(map[string]string{
		"order_id":   "user_42_days_30_1700000000",
		"status":     "success",
		"payment_id": "pm-1",
		"sum":        "1990.00",
	})
	resp := env.post(t, form.Encode())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	p := env.store.Payment("user_42_days_30_1700000000")
	if p == nil || p.Status != domain.PaymentStatusSuccess {
		t.Fatalf("payment = %+v, want success", p)
	}
	if p.Amount != 199000 {
		t.Errorf("amount = %d, want 199000", p.Amount)
	}

	sub := env.store.Subscription(42)
	if sub == nil || !sub.IsActive {
		t.Fatalf("subscription = %+v, want active", sub)
	}
	want := before.Add(30 * 24 * time.Hour)
	if sub.ExpiresAt.Before(want) || sub.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expires_at = %v, want ≈ %v", sub.ExpiresAt, want)
	}
	if env.gate.OpenedFor(42) != 1 {
		t.Errorf("gate opened %d times, want 1", env.gate.OpenedFor(42))
	}
	if env.notifier.Count("payment_succeeded", 42) != 1 {
		t.Error("confirmation message was not attempted")
	}

	// повторная доставка того же вебхука
	resp = env.post(t, form.Encode())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", resp.StatusCode)
	}
	if got := env.store.Subscription(42).ExpiresAt; !got.Equal(sub.ExpiresAt) {
		t.Errorf("duplicate delivery extended subscription: %v -> %v", sub.ExpiresAt, got)
	}
	if env.gate.OpenedFor(42) != 1 {
		t.Errorf("duplicate delivery reopened gate")
	}
}

func TestWebhookFailed(t *testing.T) {
	env := newWebhookEnv(t)

	form := signedForm(map[string]string{
		"order_id":   "user_42_days_30_1700000000",
		"status":     "failed",
		"payment_id": "pm-2",
	})
	resp := env.post(t, form.Encode())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	p := env.store.Payment("user_42_days_30_1700000000")
	if p == nil || p.Status != domain.PaymentStatusFailed {
		t.Fatalf("payment = %+v, want failed", p)
	}
	if env.store.Subscription(42) != nil {
		t.Error("failed payment must not create a subscription")
	}
	if env.gate.OpenedFor(42) != 0 {
		t.Error("failed payment must not open the gate")
	}
	if env.notifier.Count("payment_failed", 42) != 1 {
		t.Error("failure message was not attempted")
	}
}

func TestWebhookRejects(t *testing.T) {
	tests := []struct {
		name string
		body func() string
		want int
	}{
		{
			name: "bad signature",
			body: func() string {
				form := signedForm(map[string]string{"order_id": "user_42_days_30_1700000000", "status": "success", "payment_id": "pm-1"})
				form.Set("status", "failed")
				return form.Encode()
			},
			want: http.StatusForbidden,
		},
		{
			name: "missing signature",
			body: func() string {
				return url.Values{"order_id": {"user_42_days_30_1700000000"}, "status": {"success"}}.Encode()
			},
			want: http.StatusForbidden,
		},
		{
			name: "missing order id",
			body: func() string {
				return signedForm(map[string]string{"status": "success", "payment_id": "pm-1"}).Encode()
			},
			want: http.StatusBadRequest,
		},
		{
			name: "malformed order id",
			body: func() string {
				return signedForm(map[string]string{"order_id": "order_42", "status": "success", "payment_id": "pm-1"}).Encode()
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unparsable body",
			body: func() string { return "order_id=%zz" },
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWebhookEnv(t)
			resp := env.post(t, tt.body())
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if env.store.PaymentCount() != 0 {
				t.Error("rejected webhook must not touch the ledger")
			}
		})
	}
}

func TestWebhookUnknownStatus(t *testing.T) {
	env := newWebhookEnv(t)
	form := signedForm(map[string]string{"order_id": "user_42_days_30_1700000000", "status": "refunded", "payment_id": "pm-1"})
	if resp := env.post(t, form.Encode()); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if env.store.PaymentCount() != 0 {
		t.Error("unknown status must be a no-op")
	}
}

type failingReconciler struct{}

func (failingReconciler) ReconcileWebhook(ctx context.Context, ev service.WebhookEvent) error {
	return errors.New("db down")
}

func TestWebhookStorageFailure(t *testing.T) {
	logger := monitoring.NewNopLogger()
	h := NewWebhookHandler(failingReconciler{}, testSecret, logger)

	form := signedForm(map[string]string{"order_id": "user_42_days_30_1700000000", "status": "success", "payment_id": "pm-1"})
	req := httptest.NewRequest(http.MethodPost, "/prodamus-webhook", strings.NewReader(form.Encode()))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	env := newWebhookEnv(t)
	for _, path := range []string{"/health", "/"} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s: missing X-Request-ID", path)
		}
	}
}
