package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Values are cloned on the way
// in and out so callers never share state with the store.
type MemoryStore[T Entry[T]] struct {
	mu      sync.Mutex
	entries map[Key]T
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[T Entry[T]]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: make(map[Key]T)}
}

func (s *MemoryStore[T]) LoadOrCreate(_ context.Context, key Key, now time.Time, ttl time.Duration, fresh func() T) (T, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := Fresh
	if cur, ok := s.entries[key]; ok {
		if !IsExpired(cur.Touched(), now, ttl) {
			return cur.Clone(), Existing, nil
		}
		state = Expired
	}
	v := fresh()
	s.entries[key] = v.Clone()
	return v, state, nil
}

func (s *MemoryStore[T]) Load(_ context.Context, key Key) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return cur.Clone(), nil
}

func (s *MemoryStore[T]) Save(_ context.Context, key Key, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = v.Clone()
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore[T]) Sweep(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, v := range s.entries {
		if IsExpired(v.Touched(), now, ttl) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions.
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
