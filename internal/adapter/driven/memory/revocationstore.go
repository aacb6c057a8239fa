package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RevocationStore = (*RevocationStore)(nil)

// RevocationStore keeps revoked token ids with their expiry.
type RevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewRevocationStore creates an empty store.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{revoked: make(map[string]time.Time)}
}

func (s *RevocationStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[tokenID]; !ok {
		s.revoked[tokenID] = expiresAt
	}
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func (s *RevocationStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
			n++
		}
	}
	return n, nil
}
