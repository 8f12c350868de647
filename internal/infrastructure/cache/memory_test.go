package cache

import (
	"context"
	"testing"
	"time"
)

type sample struct {
	Step string `json:"step"`
	Days int    `json:"days"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)

	if err := store.Set(ctx, "state:1", sample{Step: "awaiting_promo", Days: 30}, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got sample
	found, err := store.Get(ctx, "state:1", &got)
	if err != nil || !found {
		t.Fatalf("Get() found=%v err=%v", found, err)
	}
	if got.Step != "awaiting_promo" || got.Days != 30 {
		t.Errorf("Get() = %+v", got)
	}

	if err := store.Del(ctx, "state:1"); err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if found, _ := store.Get(ctx, "state:1", &got); found {
		t.Error("ключ должен быть удален")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, 50*time.Millisecond)

	store.Set(ctx, "k", sample{Days: 1}, time.Minute)
	time.Sleep(150 * time.Millisecond)

	var got sample
	if found, _ := store.Get(ctx, "k", &got); found {
		t.Error("истекший ключ не должен находиться")
	}
}

func TestMemoryStoreBounded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)

	// брошенные диалоги не копятся сверх размера кэша
	for _, key := range []string{"state:1", "state:2", "state:3"} {
		store.Set(ctx, key, sample{Step: "awaiting_promo"}, time.Hour)
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	var got sample
	if found, _ := store.Get(ctx, "state:1", &got); found {
		t.Error("самая старая запись должна быть вытеснена")
	}
	if found, _ := store.Get(ctx, "state:3", &got); !found {
		t.Error("последняя запись должна остаться")
	}
}
