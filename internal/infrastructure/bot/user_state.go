package bot

import (
	"context"
	"fmt"
	"time"

	"breathing_club_bot/internal/infrastructure/cache"
)

// Шаги диалога, для которых бот ждет следующее сообщение пользователя
const (
	StepIdle              = ""
	StepAwaitingPromo     = "awaiting_promo"
	StepAwaitingVideo     = "awaiting_video_review"
	StepAwaitingBroadcast = "awaiting_broadcast"
)

// UserState хранит незавершенный диалог пользователя
type UserState struct {
	Step       string `json:"step"`
	TariffDays int    `json:"tariff_days,omitempty"` // выбранный тариф, пока ждем промокод
}

// StateManager управляет состояниями пользователей. Состояние живет в Redis с TTL,
// поэтому брошенный диалог сам исчезает.
type StateManager struct {
	store cache.Store
	ttl   time.Duration
}

// NewStateManager создает новый менеджер состояний
func NewStateManager(store cache.Store, ttl time.Duration) *StateManager {
	return &StateManager{store: store, ttl: ttl}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("state:%d", userID)
}

// GetState возвращает состояние пользователя, пустое, если диалога нет
func (sm *StateManager) GetState(ctx context.Context, userID int64) (*UserState, error) {
	state := &UserState{}
	found, err := sm.store.Get(ctx, stateKey(userID), state)
	if err != nil {
		return nil, fmt.Errorf("get state for %d: %w", userID, err)
	}
	if !found {
		return &UserState{}, nil
	}
	return state, nil
}

// SetState сохраняет состояние и продлевает TTL
func (sm *StateManager) SetState(ctx context.Context, userID int64, state *UserState) error {
	if err := sm.store.Set(ctx, stateKey(userID), state, sm.ttl); err != nil {
		return fmt.Errorf("set state for %d: %w", userID, err)
	}
	return nil
}

// ResetState завершает диалог
func (sm *StateManager) ResetState(ctx context.Context, userID int64) error {
	if err := sm.store.Del(ctx, stateKey(userID)); err != nil {
		return fmt.Errorf("reset state for %d: %w", userID, err)
	}
	return nil
}
