package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/astrovoice/internal/domain"
)

// MemoryStore implements SessionStore with a mutex-guarded map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionContext
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.SessionContext)}
}

// Load implements SessionStore.
func (s *MemoryStore) Load(_ context.Context, userID, platform string) (*domain.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.sessions[domain.SessionKey(platform, userID)]
	if !ok {
		return nil, nil
	}
	return sc.Clone(), nil
}

// Save implements SessionStore.
func (s *MemoryStore) Save(_ context.Context, sc *domain.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sc.Key()] = sc.Clone()
	return nil
}

// SweepExpired implements SessionStore.
func (s *MemoryStore) SweepExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sc := range s.sessions {
		if sc.State != domain.StateEnded && sc.LastActivity.Before(before) {
			sc.State = domain.StateEnded
			n++
		}
	}
	return n, nil
}

// PurgeEnded implements SessionStore.
func (s *MemoryStore) PurgeEnded(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, sc := range s.sessions {
		if sc.State == domain.StateEnded && sc.LastActivity.Before(before) {
			delete(s.sessions, key)
			n++
		}
	}
	return n, nil
}

// Ping implements SessionStore.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close implements SessionStore.
func (s *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
