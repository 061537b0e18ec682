package store

import (
	"sync"

	"github.com/akarpov/skycast/internal/weather"
)

// MemoryCache is a concurrency-safe in-memory Cache, a drop-in substitute for
// the SQLite store in tests.
type MemoryCache struct {
	mu    sync.RWMutex
	entry *weather.CachedEntry
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Put replaces any previous entry.
func (m *MemoryCache) Put(entry weather.CachedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = &entry
	return nil
}

// Get returns the last stored entry or ErrNoEntry.
func (m *MemoryCache) Get() (weather.CachedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		return weather.CachedEntry{}, ErrNoEntry
	}
	return *m.entry, nil
}
