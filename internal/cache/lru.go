package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is the in-process L1 tier, bounded by entry count. Least
// recently used entries are evicted automatically when full.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Entry]
	now   func() time.Time
}

// NewLRUStore creates an LRU-backed store holding up to size entries.
func NewLRUStore(size int) (*LRUStore, error) {
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c, now: time.Now}, nil
}

func (s *LRUStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	if entry.Expired(s.now()) {
		// Lazy eviction: an expired entry is treated as a plain miss.
		s.cache.Remove(key)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *LRUStore) Set(ctx context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache.Get(key); ok && !existing.Expired(s.now()) {
		return nil
	}
	s.cache.Add(key, entry)
	return nil
}

func (s *LRUStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}

func (s *LRUStore) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	return nil
}

// Sweep removes all expired entries. Called by the manager's background
// sweeper; reads never wait on it since expiry is also checked lazily.
func (s *LRUStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.cache.Keys() {
		if entry, ok := s.cache.Peek(key); ok && entry.Expired(now) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}
