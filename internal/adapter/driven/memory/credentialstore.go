package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore is an in-memory CredentialStore. Secrets are held as
// plaintext since nothing is written to disk.
type CredentialStore struct {
	mu     sync.RWMutex
	nextID int64
	creds  map[int64]*model.Credential
}

// NewCredentialStore creates an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[int64]*model.Credential)}
}

// Create inserts cred, rejecting an active duplicate (email, platform, owner).
func (s *CredentialStore) Create(_ context.Context, cred model.Credential) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identityTakenLocked(cred.ServiceEmail, cred.Platform, cred.OwnerID, 0) {
		return model.Credential{}, fmt.Errorf("create credential %s/%s: %w", cred.Platform, cred.ServiceEmail, driven.ErrCredentialExists)
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	cred.CreatedAt = cred.CreatedAt.UTC()
	if cred.ExpiresAt != nil {
		d := truncateDate(*cred.ExpiresAt)
		cred.ExpiresAt = &d
	}

	s.nextID++
	cred.ID = s.nextID
	cred.Active = true
	cred.LastAccessedAt = nil

	stored := copyCredential(&cred)
	s.creds[cred.ID] = &stored

	return copyCredential(&stored), nil
}

// GetByID returns the credential with id, active or not.
func (s *CredentialStore) GetByID(_ context.Context, id int64) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[id]
	if !ok {
		return nil, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	cp := copyCredential(cred)
	return &cp, nil
}

// ListOwnedBy returns the owner's active credentials, newest first.
func (s *CredentialStore) ListOwnedBy(_ context.Context, ownerID int64) ([]model.Credential, error) {
	return s.filter(func(c *model.Credential) bool { return c.OwnerID == ownerID }), nil
}

// ListByIDs returns the active credentials among ids, newest first.
func (s *CredentialStore) ListByIDs(_ context.Context, ids []int64) ([]model.Credential, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.filter(func(c *model.Credential) bool { return slices.Contains(ids, c.ID) }), nil
}

func (s *CredentialStore) filter(keep func(*model.Credential) bool) []model.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Credential
	for _, c := range s.creds {
		if c.Active && keep(c) {
			out = append(out, copyCredential(c))
		}
	}
	slices.SortFunc(out, func(a, b model.Credential) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareInt64(b.ID, a.ID)
	})
	return out
}

// Update applies the non-nil fields of patch to an active credential.
func (s *CredentialStore) Update(_ context.Context, id int64, patch model.CredentialPatch) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.creds[id]
	if !ok || !cur.Active {
		return model.Credential{}, fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialNotFound)
	}

	next := copyCredential(cur)
	if patch.Label != nil {
		next.Label = *patch.Label
	}
	if patch.Platform != nil {
		next.Platform = *patch.Platform
	}
	if patch.ServiceEmail != nil {
		next.ServiceEmail = *patch.ServiceEmail
	}
	if patch.ServiceUsername != nil {
		next.ServiceUsername = *patch.ServiceUsername
	}
	if patch.Secret != nil {
		next.Secret = *patch.Secret
	}
	if patch.Photo != nil {
		next.Photo = *patch.Photo
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	switch {
	case patch.ClearExpiry:
		next.ExpiresAt = nil
	case patch.ExpiresAt != nil:
		d := truncateDate(*patch.ExpiresAt)
		next.ExpiresAt = &d
	}

	if s.identityTakenLocked(next.ServiceEmail, next.Platform, next.OwnerID, id) {
		return model.Credential{}, fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialExists)
	}

	s.creds[id] = &next
	return copyCredential(&next), nil
}

// Deactivate soft-deletes an active credential.
func (s *CredentialStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[id]
	if !ok || !cred.Active {
		return fmt.Errorf("deactivate credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	cred.Active = false
	return nil
}

// TouchLastAccessed sets LastAccessedAt.
func (s *CredentialStore) TouchLastAccessed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[id]
	if !ok {
		return fmt.Errorf("touch credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	t := at.UTC()
	cred.LastAccessedAt = &t
	return nil
}

func (s *CredentialStore) identityTakenLocked(email string, platform model.Platform, ownerID, exceptID int64) bool {
	for _, c := range s.creds {
		if c.Active && c.ID != exceptID && c.OwnerID == ownerID && c.Platform == platform &&
			strings.EqualFold(c.ServiceEmail, email) {
			return true
		}
	}
	return false
}

func copyCredential(c *model.Credential) model.Credential {
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.LastAccessedAt != nil {
		t := *c.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	return cp
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
