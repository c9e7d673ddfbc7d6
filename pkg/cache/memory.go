package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is the in-process Service. It serves as the layered
// cache's near tier and as the whole cache when Redis is disabled.
// Entries hold marshaled bytes so Get decodes into any destination,
// matching the Redis tier's behavior exactly.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	cap     int
}

type memoryEntry struct {
	data    []byte
	expires time.Time
	written time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), cap: capacity}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := time.Now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	m.mu.Lock()
	if len(m.entries) >= m.cap {
		m.evict(now)
	}
	m.entries[key] = memoryEntry{data: data, expires: expires, written: now}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && e.expired(now) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	m.entries[key] = memoryEntry{data: []byte("1"), expires: now.Add(ttl), written: now}
	return true, nil
}

func (m *MemoryCache) Unlock(ctx context.Context, key string) error {
	return m.Delete(ctx, key)
}

// evict drops expired entries first, then the oldest write if the map
// is still full. Caller holds the lock.
func (m *MemoryCache) evict(now time.Time) {
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
	if len(m.entries) < m.cap {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, e := range m.entries {
		if oldestKey == "" || e.written.Before(oldest) {
			oldestKey = key
			oldest = e.written
		}
	}
	delete(m.entries, oldestKey)
}

var _ Service = (*MemoryCache)(nil)
