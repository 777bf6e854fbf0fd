package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for single-process deployments and
// tests. Expiry is enforced lazily: an expired entry is removed the next
// time it is read. There is no background sweeper, so entries that are
// never read again stay in memory until the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is swappable for expiry tests.
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		// Lazy expiry: drop the entry on read. Re-check under the write
		// lock in case a concurrent Put replaced it.
		s.mu.Lock()
		if current, stillThere := s.entries[key]; stillThere {
			if !current.expiresAt.IsZero() && s.now().After(current.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored slice.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries currently held, including entries
// past their TTL that have not been read since expiring.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
