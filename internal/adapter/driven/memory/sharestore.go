package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ShareStore = (*ShareStore)(nil)

// ShareStore is an in-memory ShareStore. Rows are never removed; unsharing
// only clears Active.
type ShareStore struct {
	mu     sync.RWMutex
	nextID int64
	shares []model.Share
}

// NewShareStore creates an empty store.
func NewShareStore() *ShareStore {
	return &ShareStore{}
}

// Create inserts an active share unless one already exists for the pair.
func (s *ShareStore) Create(_ context.Context, share model.Share) (model.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeIndexLocked(share.CredentialID, share.GranteeID) >= 0 {
		return model.Share{}, fmt.Errorf("share credential %d with %d: %w", share.CredentialID, share.GranteeID, driven.ErrShareExists)
	}

	if share.SharedAt.IsZero() {
		share.SharedAt = time.Now()
	}
	share.SharedAt = share.SharedAt.UTC()

	s.nextID++
	share.ID = s.nextID
	share.Active = true
	s.shares = append(s.shares, share)

	return share, nil
}

// GetActive returns the active share for the pair.
func (s *ShareStore) GetActive(_ context.Context, credentialID, granteeID int64) (*model.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.activeIndexLocked(credentialID, granteeID)
	if i < 0 {
		return nil, fmt.Errorf("get share %d/%d: %w", credentialID, granteeID, driven.ErrShareNotFound)
	}
	share := s.shares[i]
	return &share, nil
}

// ListActiveByCredential returns active shares of a credential, oldest first.
func (s *ShareStore) ListActiveByCredential(_ context.Context, credentialID int64) ([]model.Share, error) {
	return s.filter(func(sh model.Share) bool { return sh.CredentialID == credentialID }), nil
}

// ListActiveByGrantee returns active shares held by an account, oldest first.
func (s *ShareStore) ListActiveByGrantee(_ context.Context, granteeID int64) ([]model.Share, error) {
	return s.filter(func(sh model.Share) bool { return sh.GranteeID == granteeID }), nil
}

func (s *ShareStore) filter(keep func(model.Share) bool) []model.Share {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Share
	for _, sh := range s.shares {
		if sh.Active && keep(sh) {
			out = append(out, sh)
		}
	}
	// Insertion order is id order; stable sort keeps it for equal timestamps.
	slices.SortStableFunc(out, func(a, b model.Share) int { return a.SharedAt.Compare(b.SharedAt) })
	return out
}

// Deactivate marks the active share for the pair inactive.
func (s *ShareStore) Deactivate(_ context.Context, credentialID, granteeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.activeIndexLocked(credentialID, granteeID)
	if i < 0 {
		return fmt.Errorf("unshare %d/%d: %w", credentialID, granteeID, driven.ErrShareNotFound)
	}
	s.shares[i].Active = false
	return nil
}

func (s *ShareStore) activeIndexLocked(credentialID, granteeID int64) int {
	for i, sh := range s.shares {
		if sh.Active && sh.CredentialID == credentialID && sh.GranteeID == granteeID {
			return i
		}
	}
	return -1
}
