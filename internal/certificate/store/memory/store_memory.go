package memory

import (
	"context"
	"fmt"
	"sync"

	"veritag/internal/certificate/models"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when the expected version does not match
// - Return nil for successful operations

// InMemoryStore keeps certificates in memory for tests and development.
// It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.CertificateID]*models.Certificate
	byPublic map[string]id.CertificateID
}

// New constructs an empty in-memory certificate store.
func New() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.CertificateID]*models.Certificate),
		byPublic: make(map[string]id.CertificateID),
	}
}

func (s *InMemoryStore) Get(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[certID]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	return cert.Clone(), nil
}

func (s *InMemoryStore) GetByPublicID(_ context.Context, publicID string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.byPublic[publicID]
	if !ok {
		return nil, fmt.Errorf("certificate with public id: %w", sentinel.ErrNotFound)
	}
	return s.byID[certID].Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, cert *models.Certificate, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.byID[cert.InternalID]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("certificate %s: %w", cert.InternalID, sentinel.ErrNotFound)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("certificate %s version %d, expected %d: %w",
			cert.InternalID, current.Version, expectedVersion, sentinel.ErrConflict)
	}

	stored := cert.Clone()
	stored.Version = expectedVersion + 1
	if exists && current.PublicID != stored.PublicID {
		delete(s.byPublic, current.PublicID)
	}
	s.byID[stored.InternalID] = stored
	s.byPublic[stored.PublicID] = stored.InternalID

	// Reflect the committed version back to the caller's record.
	cert.Version = stored.Version
	return nil
}

func (s *InMemoryStore) ExistsPublicID(_ context.Context, publicID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPublic[publicID]
	return ok, nil
}
