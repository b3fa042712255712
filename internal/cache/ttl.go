// Package cache provides TTL-bounded in-memory stores for transaction
// packets, chain snapshots, and the shared network-state cell.
package cache

import (
	"sync"
	"time"
)

// entry pairs a cached value with its expiry deadline.
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// TTLStore is a concurrency-safe map whose entries expire after a fixed
// TTL. Expired entries are dropped lazily on read and in bulk by Prune.
type TTLStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLStore creates a store whose entries live for ttl after each Set.
func NewTTLStore[T any](ttl time.Duration) *TTLStore[T] {
	return &TTLStore[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set stores value under key, resetting its TTL.
func (s *TTLStore[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, expiresAt: s.now().Add(s.ttl)}
}

// Get returns the value for key. An expired entry is removed and reported
// as absent.
func (s *TTLStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: the entry may have been refreshed.
		if cur, still := s.entries[key]; still && !s.now().Before(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Delete removes key if present.
func (s *TTLStore[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len returns the number of entries, expired ones included.
func (s *TTLStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Prune removes all expired entries and returns how many were dropped.
func (s *TTLStore[T]) Prune() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Cell is a single mutable value shared across goroutines. Unlike TTLStore
// entries it never expires; callers overwrite it as fresher state arrives.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// Store replaces the cell's value.
func (c *Cell[T]) Store(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.set = true
}

// Load returns the current value and whether one has ever been stored.
func (c *Cell[T]) Load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}
