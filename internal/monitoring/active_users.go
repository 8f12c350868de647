package monitoring

import (
	"context"
	"sync"
	"time"
)

// ActiveUsersManager считает пользователей, писавших боту за последние timeout
type ActiveUsersManager struct {
	activeUsers map[int64]time.Time
	mutex       sync.RWMutex
	timeout     time.Duration
}

// NewActiveUsersManager создает менеджер активных пользователей
func NewActiveUsersManager(timeout time.Duration) *ActiveUsersManager {
	return &ActiveUsersManager{
		activeUsers: make(map[int64]time.Time),
		timeout:     timeout,
	}
}

// MarkUserActive отмечает пользователя как активного
func (aum *ActiveUsersManager) MarkUserActive(userID int64) {
	if aum == nil {
		return
	}
	aum.mutex.Lock()
	defer aum.mutex.Unlock()

	aum.activeUsers[userID] = time.Now()
}

// GetActiveUsersCount возвращает количество активных пользователей
func (aum *ActiveUsersManager) GetActiveUsersCount() int {
	aum.mutex.RLock()
	defer aum.mutex.RUnlock()

	return aum.countActive(time.Now())
}

func (aum *ActiveUsersManager) countActive(now time.Time) int {
	count := 0
	for _, lastActivity := range aum.activeUsers {
		if now.Sub(lastActivity) <= aum.timeout {
			count++
		}
	}
	return count
}

// Run периодически чистит неактивных пользователей и обновляет метрику, пока не отменен ctx
func (aum *ActiveUsersManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			aum.cleanup(time.Now())
		}
	}
}

func (aum *ActiveUsersManager) cleanup(now time.Time) {
	aum.mutex.Lock()
	defer aum.mutex.Unlock()

	for userID, lastActivity := range aum.activeUsers {
		if now.Sub(lastActivity) > aum.timeout {
			delete(aum.activeUsers, userID)
		}
	}

	SetActiveTelegramUsers(aum.countActive(now))
}
