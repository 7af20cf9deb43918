package cache

import (
	"context"
	"sync"

	"github.com/macrolens/shelfprice/internal/domain"
)

// MemoryStore is a thread-safe in-memory key-value store.
// Entries live until the process exits; freshness is decided by the Policy.
type MemoryStore struct {
	data  map[string][]byte
	mutex sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value from the store
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores a copy of value under key, replacing any previous entry
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[key] = stored
	return nil
}

// Size returns the current number of entries
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// Clear removes all entries; the process drops the store this way on exit
func (s *MemoryStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = make(map[string][]byte)
}
