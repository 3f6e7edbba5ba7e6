package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-instance Store. Entries are lost on restart.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, policy Policy) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	next, decision := apply(e, ok, now, policy)
	s.entries[key] = next

	s.sweep(now, policy)
	return decision, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops entries whose window and lockout have both passed. Runs at most
// once per window; caller holds mu.
func (s *MemoryStore) sweep(now time.Time, policy Policy) {
	if now.Sub(s.lastSweep) < policy.Window {
		return
	}
	s.lastSweep = now
	for key, e := range s.entries {
		if now.After(e.resetAt) && !now.Before(e.lockedUntil) {
			delete(s.entries, key)
		}
	}
}
