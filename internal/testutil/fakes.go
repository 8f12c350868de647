package testutil

import (
	"context"
	"fmt"
	"sync"

	"breathing_club_bot/internal/domain"
)

// Gate запоминает открытия и закрытия канала
type Gate struct {
	mu     sync.Mutex
	Opened []int64
	Closed []int64
	// FailClose пользователи, для которых Close возвращает ошибку
	FailClose map[int64]bool
	FailOpen  bool
}

func (g *Gate) Open(ctx context.Context, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailOpen {
		return fmt.Errorf("%w: open %d", domain.ErrChannelGate, userID)
	}
	g.Opened = append(g.Opened, userID)
	return nil
}

func (g *Gate) Close(ctx context.Context, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailClose[userID] {
		return fmt.Errorf("%w: close %d", domain.ErrChannelGate, userID)
	}
	g.Closed = append(g.Closed, userID)
	return nil
}

func (g *Gate) OpenedFor(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, id := range g.Opened {
		if id == userID {
			n++
		}
	}
	return n
}

func (g *Gate) ClosedFor(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, id := range g.Closed {
		if id == userID {
			n++
		}
	}
	return n
}

// Event отправленное уведомление
type Event struct {
	Kind   string
	UserID int64
	Text   string
}

// Notifier запоминает уведомления вместо отправки в Telegram
type Notifier struct {
	mu     sync.Mutex
	Events []Event
	// Fail заставляет все отправки возвращать ErrNotificationDelivery
	Fail bool
}

func (n *Notifier) record(kind string, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail {
		return fmt.Errorf("%w: %s to %d", domain.ErrNotificationDelivery, kind, userID)
	}
	n.Events = append(n.Events, Event{Kind: kind, UserID: userID, Text: text})
	return nil
}

// Count возвращает количество уведомлений вида kind для пользователя
func (n *Notifier) Count(kind string, userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.Events {
		if e.Kind == kind && e.UserID == userID {
			c++
		}
	}
	return c
}

func (n *Notifier) PaymentSucceeded(ctx context.Context, userID int64, sub *domain.Subscription) error {
	return n.record("payment_succeeded", userID, "")
}

func (n *Notifier) PaymentFailed(ctx context.Context, userID int64) error {
	return n.record("payment_failed", userID, "")
}

func (n *Notifier) ReferralBonusGranted(ctx context.Context, referrerID int64, bonusDays int, sub *domain.Subscription) error {
	return n.record("referral_bonus", referrerID, "")
}

func (n *Notifier) SubscriptionExpired(ctx context.Context, userID int64) error {
	return n.record("expired", userID, "")
}

func (n *Notifier) SubscriptionExpiring(ctx context.Context, userID int64, sub *domain.Subscription) error {
	return n.record("expiring", userID, "")
}

func (n *Notifier) LessonReminder(ctx context.Context, userID int64) error {
	return n.record("lesson_reminder", userID, "")
}

func (n *Notifier) UnconvertedReminder(ctx context.Context, userID int64) error {
	return n.record("unconverted_reminder", userID, "")
}

func (n *Notifier) SendText(ctx context.Context, userID int64, text string) error {
	return n.record("text", userID, text)
}
