package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with a mutex-guarded map. It is used by tests
// and by single-process local runs where no Valkey is available. Expired keys
// are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Set stores a value with the given key and TTL.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = newEntry(value, ttl)
	return nil
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(time.Now()) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// SetNX sets a value only if the key doesn't exist. The check and the write
// happen under one lock acquisition, so concurrent callers for the same key
// have exactly one winner.
func (s *MemoryStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && !entry.expired(time.Now()) {
		return false, nil
	}

	s.entries[key] = newEntry(value, ttl)
	return true, nil
}

// Close releases the store. No-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

func newEntry(value []byte, ttl time.Duration) memoryEntry {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	return entry
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
