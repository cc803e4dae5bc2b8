// Package memory is the in-process session store used in tests and
// single-node development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"veritag/internal/verification/models"
	"veritag/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a mutex-guarded map. Consumed sessions stay
// behind as tombstones until their TTL elapses so a replay is distinguishable
// from an unknown token.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func New() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.TokenHash]; exists {
		return fmt.Errorf("session %q: %w", session.TokenHash, sentinel.ErrConflict)
	}
	cp := *session
	s.sessions[session.TokenHash] = &cp
	return nil
}

// Consume atomically claims the session. Exactly one caller ever receives
// the session back; everyone else gets a sentinel describing why not.
func (s *InMemoryStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	if session.Expired(now) {
		delete(s.sessions, tokenHash)
		return nil, fmt.Errorf("session: %w", sentinel.ErrExpired)
	}
	if session.Phase == models.PhaseConsumed {
		return nil, fmt.Errorf("session: %w", sentinel.ErrAlreadyUsed)
	}

	session.Phase = models.PhaseConsumed
	cp := *session
	return &cp, nil
}
