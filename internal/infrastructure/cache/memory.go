package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize сколько диалогов держит MemoryStore, прежде чем вытеснять самые старые
const DefaultMemorySize = 10000

// MemoryStore хранит значения в памяти процесса. Используется, когда Redis недоступен.
// TTL общий на весь кэш и задается при создании, ttl в Set не используется.
type MemoryStore struct {
	items *expirable.LRU[string, []byte]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryStore{
		items: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (m *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items.Add(key, data)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, ok := m.items.Get(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (m *MemoryStore) Del(ctx context.Context, key string) error {
	m.items.Remove(key)
	return nil
}

// Len количество неистекших записей
func (m *MemoryStore) Len() int {
	return m.items.Len()
}
