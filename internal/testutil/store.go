// Package testutil содержит in-memory реализации репозиториев и внешних зависимостей для тестов.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"breathing_club_bot/internal/domain"
)

type usageKey struct {
	userID      int64
	promocodeID int64
}

// Store in-memory хранилище с той же семантикой условных обновлений, что и Postgres-репозитории
type Store struct {
	mu sync.Mutex

	users         map[int64]*domain.User
	subscriptions map[int64]*domain.Subscription
	payments      map[string]*domain.Payment
	promocodes    map[string]*domain.Promocode
	usages        map[usageKey]time.Time
	referrals     map[int64]*domain.Referral
	agreements    map[int64]*domain.Agreement
	lessons       map[int64]*domain.LessonProgress
	reviews       map[int64]*domain.VideoReview

	nextID int64

	// Err, если задана, возвращается из всех методов
	Err error
}

func NewStore() *Store {
	return &Store{
		users:         make(map[int64]*domain.User),
		subscriptions: make(map[int64]*domain.Subscription),
		payments:      make(map[string]*domain.Payment),
		promocodes:    make(map[string]*domain.Promocode),
		usages:        make(map[usageKey]time.Time),
		referrals:     make(map[int64]*domain.Referral),
		agreements:    make(map[int64]*domain.Agreement),
		lessons:       make(map[int64]*domain.LessonProgress),
		reviews:       make(map[int64]*domain.VideoReview),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Хелперы для подготовки данных и проверок

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) PutSubscription(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = s.id()
	}
	s.subscriptions[sub.UserID] = &sub
}

func (s *Store) Subscription(userID int64) *domain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscriptions[userID]; ok {
		c := *sub
		return &c
	}
	return nil
}

func (s *Store) Payment(paymentID string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[paymentID]; ok {
		c := *p
		return &c
	}
	return nil
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) PutPromocode(p domain.Promocode) *domain.Promocode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.promocodes[p.Code] = &p
	c := p
	return &c
}

func (s *Store) Promocode(code string) *domain.Promocode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.promocodes[code]; ok {
		c := *p
		return &c
	}
	return nil
}

func (s *Store) Referral(referredID int64) *domain.Referral {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.referrals[referredID]; ok {
		c := *r
		return &c
	}
	return nil
}

func (s *Store) PutLesson(p domain.LessonProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[p.UserID] = &p
}

func (s *Store) Lesson(userID int64) *domain.LessonProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.lessons[userID]; ok {
		c := *p
		return &c
	}
	return nil
}

// extend повторяет upsert из Postgres-репозитория. Вызывается под s.mu.
func (s *Store) extend(userID int64, days int, now time.Time) *domain.Subscription {
	sub, ok := s.subscriptions[userID]
	if !ok {
		sub = &domain.Subscription{ID: s.id(), UserID: userID, CreatedAt: now}
		s.subscriptions[userID] = sub
	}
	sub.ExpiresAt = domain.ExtendExpiry(sub.ExpiresAt, now, days)
	sub.TariffDays = days
	sub.IsActive = true
	sub.UpdatedAt = now
	c := *sub
	return &c
}

// Users

type Users struct{ s *Store }

func (s *Store) UserRepo() *Users { return &Users{s} }

func (r *Users) Upsert(ctx context.Context, user *domain.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	existing, ok := r.s.users[user.ID]
	if ok {
		referrer := existing.ReferrerID
		created := existing.CreatedAt
		c := *user
		if referrer != nil {
			c.ReferrerID = referrer
		}
		c.CreatedAt = created
		r.s.users[user.ID] = &c
		user.CreatedAt = created
		return false, nil
	}
	c := *user
	c.CreatedAt = time.Now()
	user.CreatedAt = c.CreatedAt
	r.s.users[user.ID] = &c
	return true, nil
}

func (r *Users) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if u, ok := r.s.users[userID]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *Users) ListIDs(ctx context.Context) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	ids := make([]int64, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Subscriptions

type Subscriptions struct{ s *Store }

func (s *Store) SubscriptionRepo() *Subscriptions { return &Subscriptions{s} }

func (r *Subscriptions) GetByUserID(ctx context.Context, userID int64) (*domain.Subscription, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.Subscription(userID), nil
}

func (r *Subscriptions) Extend(ctx context.Context, userID int64, days int, now time.Time) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.extend(userID, days, now), nil
}

func (r *Subscriptions) list(match func(*domain.Subscription) bool) []*domain.Subscription {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*domain.Subscription
	for _, sub := range r.s.subscriptions {
		if match(sub) {
			c := *sub
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result
}

func (r *Subscriptions) ListExpired(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.list(func(s *domain.Subscription) bool {
		return s.IsActive && s.ExpiresAt.Before(now)
	}), nil
}

func (r *Subscriptions) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*domain.Subscription, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.list(func(s *domain.Subscription) bool {
		return s.IsActive && !s.ExpiresAt.Before(from) && s.ExpiresAt.Before(to)
	}), nil
}

func (r *Subscriptions) Deactivate(ctx context.Context, userID int64, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	sub, ok := r.s.subscriptions[userID]
	if !ok || !sub.IsActive || !sub.ExpiresAt.Before(now) {
		return false, nil
	}
	sub.IsActive = false
	return true, nil
}

func (r *Subscriptions) HasActive(ctx context.Context, userID int64, now time.Time) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	sub := r.s.Subscription(userID)
	return sub != nil && sub.IsActive && sub.ExpiresAt.After(now), nil
}

// Payments

type Payments struct{ s *Store }

func (s *Store) PaymentRepo() *Payments { return &Payments{s} }

func (r *Payments) Create(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	payment.ID = r.s.id()
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPending
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	c := *payment
	r.s.payments[payment.PaymentID] = &c
	return nil
}

func (r *Payments) MarkSucceeded(ctx context.Context, payment *domain.Payment, now time.Time) (*domain.Subscription, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, false, r.s.Err
	}

	existing, ok := r.s.payments[payment.PaymentID]
	switch {
	case ok && existing.Status == domain.PaymentStatusSuccess:
		return nil, false, nil
	case ok:
		existing.Status = domain.PaymentStatusSuccess
		if payment.ProviderPaymentID != "" {
			existing.ProviderPaymentID = payment.ProviderPaymentID
		}
		existing.UpdatedAt = now
	default:
		c := *payment
		c.ID = r.s.id()
		c.Status = domain.PaymentStatusSuccess
		c.CreatedAt = now
		c.UpdatedAt = now
		r.s.payments[c.PaymentID] = &c
	}

	return r.s.extend(payment.UserID, payment.SubscriptionDays, now), true, nil
}

func (r *Payments) MarkFailed(ctx context.Context, payment *domain.Payment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	existing, ok := r.s.payments[payment.PaymentID]
	if !ok {
		c := *payment
		c.ID = r.s.id()
		c.Status = domain.PaymentStatusFailed
		r.s.payments[c.PaymentID] = &c
		return true, nil
	}
	if existing.Status != domain.PaymentStatusPending {
		return false, nil
	}
	existing.Status = domain.PaymentStatusFailed
	return true, nil
}

func (r *Payments) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var result []*domain.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Promocodes

type Promocodes struct{ s *Store }

func (s *Store) PromocodeRepo() *Promocodes { return &Promocodes{s} }

func (r *Promocodes) GetActiveByCode(ctx context.Context, code string) (*domain.Promocode, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	p := r.s.Promocode(code)
	if p == nil || !p.IsActive {
		return nil, nil
	}
	return p, nil
}

func (r *Promocodes) HasUsage(ctx context.Context, userID, promocodeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	_, ok := r.s.usages[usageKey{userID, promocodeID}]
	return ok, nil
}

func (r *Promocodes) RecordUsage(ctx context.Context, userID, promocodeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	key := usageKey{userID, promocodeID}
	if _, ok := r.s.usages[key]; ok {
		return false, nil
	}
	r.s.usages[key] = time.Now()
	for _, p := range r.s.promocodes {
		if p.ID == promocodeID {
			p.CurrentUses++
		}
	}
	return true, nil
}

func (r *Promocodes) Create(ctx context.Context, promocode *domain.Promocode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.promocodes[promocode.Code]; ok {
		return domain.ErrPromocodeExists
	}
	promocode.ID = r.s.id()
	promocode.CreatedAt = time.Now()
	c := *promocode
	r.s.promocodes[c.Code] = &c
	return nil
}

func (r *Promocodes) Ensure(ctx context.Context, promocode *domain.Promocode) (*domain.Promocode, error) {
	r.s.mu.Lock()
	if r.s.Err != nil {
		r.s.mu.Unlock()
		return nil, r.s.Err
	}
	if _, ok := r.s.promocodes[promocode.Code]; !ok {
		c := *promocode
		c.ID = r.s.id()
		r.s.promocodes[c.Code] = &c
	}
	r.s.mu.Unlock()
	return r.s.Promocode(promocode.Code), nil
}

// Referrals

type Referrals struct{ s *Store }

func (s *Store) ReferralRepo() *Referrals { return &Referrals{s} }

func (r *Referrals) Create(ctx context.Context, referrerID, referredID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	if _, ok := r.s.referrals[referredID]; ok {
		return false, nil
	}
	r.s.referrals[referredID] = &domain.Referral{
		ID:         r.s.id(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  time.Now(),
	}
	return true, nil
}

func (r *Referrals) GrantBonus(ctx context.Context, referredID int64, bonusDays int, now time.Time) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, false, r.s.Err
	}
	ref, ok := r.s.referrals[referredID]
	if !ok || ref.IsBonusGiven {
		return 0, false, nil
	}
	ref.IsBonusGiven = true
	ref.BonusGivenAt = &now
	r.s.extend(ref.ReferrerID, bonusDays, now)
	return ref.ReferrerID, true, nil
}

func (r *Referrals) Stats(ctx context.Context, referrerID int64) (*domain.ReferralStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	stats := &domain.ReferralStats{}
	for _, ref := range r.s.referrals {
		if ref.ReferrerID != referrerID {
			continue
		}
		stats.Invited++
		if ref.IsBonusGiven {
			stats.BonusesGiven++
		}
	}
	return stats, nil
}

// Agreements

type Agreements struct{ s *Store }

func (s *Store) AgreementRepo() *Agreements { return &Agreements{s} }

func (r *Agreements) Get(ctx context.Context, userID int64) (*domain.Agreement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if a, ok := r.s.agreements[userID]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (r *Agreements) AcceptAll(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	r.s.agreements[userID] = &domain.Agreement{
		UserID:          userID,
		OfferAccepted:   true,
		PrivacyAccepted: true,
		ConsentAccepted: true,
	}
	return nil
}

// Lessons

type Lessons struct{ s *Store }

func (s *Store) LessonRepo() *Lessons { return &Lessons{s} }

func (r *Lessons) Start(ctx context.Context, userID int64, now, dueAt time.Time) (*domain.LessonProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	p, ok := r.s.lessons[userID]
	if !ok {
		p = &domain.LessonProgress{UserID: userID, CreatedAt: now}
		r.s.lessons[userID] = p
	}
	if p.FirstLessonStartedAt == nil {
		started := now
		p.FirstLessonStartedAt = &started
	}
	if p.LessonClicked {
		p.ReminderDueAt = nil
	} else {
		due := dueAt
		p.ReminderDueAt = &due
	}
	c := *p
	return &c, nil
}

func (r *Lessons) Get(ctx context.Context, userID int64) (*domain.LessonProgress, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.Lesson(userID), nil
}

func (r *Lessons) MarkClicked(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	p, ok := r.s.lessons[userID]
	if !ok {
		p = &domain.LessonProgress{UserID: userID}
		r.s.lessons[userID] = p
	}
	p.LessonClicked = true
	p.ReminderDueAt = nil
	return nil
}

func (r *Lessons) ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var ids []int64
	for id, p := range r.s.lessons {
		if p.ReminderDueAt == nil || p.ReminderDueAt.After(now) || p.LessonClicked {
			continue
		}
		p.ReminderDueAt = nil
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Lessons) ListUnconverted(ctx context.Context, startedFrom, startedTo time.Time) ([]*domain.LessonProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var result []*domain.LessonProgress
	for _, p := range r.s.lessons {
		if p.ReminderSent || p.FirstLessonStartedAt == nil {
			continue
		}
		if p.FirstLessonStartedAt.Before(startedFrom) || !p.FirstLessonStartedAt.Before(startedTo) {
			continue
		}
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (r *Lessons) MarkReminderSent(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if p, ok := r.s.lessons[userID]; ok {
		p.ReminderSent = true
	}
	return nil
}

// VideoReviews

type VideoReviews struct{ s *Store }

func (s *Store) VideoReviewRepo() *VideoReviews { return &VideoReviews{s} }

func (r *VideoReviews) Create(ctx context.Context, review *domain.VideoReview) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	if _, ok := r.s.reviews[review.UserID]; ok {
		return false, nil
	}
	review.ID = r.s.id()
	review.CreatedAt = time.Now()
	c := *review
	r.s.reviews[review.UserID] = &c
	return true, nil
}

func (r *VideoReviews) GetByUserID(ctx context.Context, userID int64) (*domain.VideoReview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if v, ok := r.s.reviews[userID]; ok {
		c := *v
		return &c, nil
	}
	return nil, nil
}

func (r *VideoReviews) Approve(ctx context.Context, id int64) (*domain.VideoReview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for _, v := range r.s.reviews {
		if v.ID == id {
			v.IsApproved = true
			c := *v
			return &c, nil
		}
	}
	return nil, nil
}

// Reports

type Reports struct{ s *Store }

func (s *Store) ReportRepo() *Reports { return &Reports{s} }

func (r *Reports) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	stats := &domain.Stats{Users: len(r.s.users), Referrals: len(r.s.referrals)}
	for _, sub := range r.s.subscriptions {
		if sub.IsActive && sub.ExpiresAt.After(now) {
			stats.ActiveSubscriptions++
		}
	}
	for _, p := range r.s.payments {
		if p.Status == domain.PaymentStatusSuccess {
			stats.SuccessfulPayments++
			stats.Revenue += p.Amount
		}
	}
	for _, l := range r.s.lessons {
		if l.FirstLessonStartedAt != nil {
			stats.LessonsStarted++
		}
	}
	return stats, nil
}

func (r *Reports) Subscribers(ctx context.Context, onlyActive bool, limit int) ([]domain.SubscriberRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var rows []domain.SubscriberRow
	for _, sub := range r.s.subscriptions {
		if onlyActive && !sub.IsActive {
			continue
		}
		row := domain.SubscriberRow{
			UserID:     sub.UserID,
			ExpiresAt:  sub.ExpiresAt,
			TariffDays: sub.TariffDays,
			IsActive:   sub.IsActive,
		}
		if u, ok := r.s.users[sub.UserID]; ok {
			row.Username = u.Username
			row.FirstName = u.FirstName
			row.LastName = u.LastName
		}
		for _, p := range r.s.payments {
			if p.UserID == sub.UserID && p.Status == domain.PaymentStatusSuccess {
				row.TotalPaid += p.Amount
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExpiresAt.After(rows[j].ExpiresAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
