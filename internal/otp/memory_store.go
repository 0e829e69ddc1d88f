package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Expired entries stay readable so callers
// can tell an expired code from a missing one; Purge drops them in bulk.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]Challenge
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]Challenge),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores c under its mobile number.
func (s *MemoryStore) Put(_ context.Context, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Attempts = 0
	s.m[c.Mobile] = c
	return nil
}

// Get returns the challenge for mobile, expired or not.
func (s *MemoryStore) Get(_ context.Context, mobile string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[mobile]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return c, nil
}

// IncrementAttempts bumps the failed-attempt counter.
func (s *MemoryStore) IncrementAttempts(_ context.Context, mobile string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[mobile]
	if !ok || c.Expired(s.nowF()) {
		return 0, ErrNotFound
	}
	c.Attempts++
	s.m[mobile] = c
	return c.Attempts, nil
}

// Delete removes the challenge for mobile.
func (s *MemoryStore) Delete(_ context.Context, mobile string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[mobile]; !ok {
		return false, nil
	}
	delete(s.m, mobile)
	return true, nil
}

// Purge drops every challenge expired at now and returns how many were removed.
func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for mobile, c := range s.m {
		if c.Expired(now) {
			delete(s.m, mobile)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored challenges, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
