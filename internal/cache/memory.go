package cache

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps entries in process. It backs client state when redis is
// disabled so carts survive between requests of a single instance.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	ttl     time.Duration
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryStore returns an in-process Store. Entries expire after ttl when
// ttl is positive.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{entries: make(map[string]memoryEntry), now: time.Now, ttl: ttl}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
