package sessionstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// sweepInterval bounds how long expired entries of users who never return
// stay in memory.
const sweepInterval = time.Minute

// MemoryStore is an in-process Store, used when no REDIS_URL is configured
// and in tests. Expired entries are dropped on access, and writes sweep the
// whole map at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]memoryEntry),
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweepLocked(now)
	}

	e := memoryEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Sweep drops every expired entry and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	m.lastSweep = now
	return removed
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of entries, including expired ones not yet evicted.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
