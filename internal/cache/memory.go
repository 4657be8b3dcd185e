package cache

import (
	"context"
	"sync"
	"time"
)

type memItem struct {
	value     []byte
	expiresAt time.Time // zero: no expiry
}

// Memory is a process-local Store, used when no Redis is configured and in tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || (!it.expiresAt.IsZero() && !m.now().Before(it.expiresAt)) {
		return nil, ErrMiss
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it := memItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

// Has reports whether key holds a live entry.
func (m *Memory) Has(key string) bool {
	_, err := m.Get(context.Background(), key)
	return err == nil
}
