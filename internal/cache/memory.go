package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Memory is an in-process Cache backed by a map. Used in tests and as the
// fallback backend when REDIS_HOST is unset. Expired entries are swept
// lazily on access, not on a background timer.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, found := m.entries[key]
	m.mu.RUnlock()
	if !found {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expires: exp}
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer Producer) ([]byte, error) {
	if v, ok, err := m.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	v, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return v, nil
	}
	if err := m.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}
