// Package memory provides mutex-guarded in-memory implementations of the
// driven store ports. Each store holds its lock across check and insert, so
// uniqueness holds under concurrent callers. Data does not survive a restart.
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
var _ driven.AccountStore = (*AccountStore)(nil)

// AccountStore is an in-memory AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]*model.Account
	byEmail  map[string]int64 // lowercased email -> id
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]*model.Account),
		byEmail:  make(map[string]int64),
	}
}

// Create inserts acct, rejecting a duplicate email.
func (s *AccountStore) Create(_ context.Context, acct model.NewAccount) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(acct)
}

// CreateIfEmpty inserts acct only when no account exists.
func (s *AccountStore) CreateIfEmpty(_ context.Context, acct model.NewAccount) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.accounts) > 0 {
		return model.Account{}, fmt.Errorf("create account %s: %w", acct.Email, driven.ErrStoreNotEmpty)
	}
	return s.insertLocked(acct)
}

func (s *AccountStore) insertLocked(acct model.NewAccount) (model.Account, error) {
	key := emailKey(acct.Email)
	if _, taken := s.byEmail[key]; taken {
		return model.Account{}, fmt.Errorf("create account %s: %w", acct.Email, driven.ErrEmailTaken)
	}
	if acct.ParentID != nil {
		if _, ok := s.accounts[*acct.ParentID]; !ok {
			return model.Account{}, fmt.Errorf("create account %s: parent: %w", acct.Email, driven.ErrAccountNotFound)
		}
	}

	createdAt := acct.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	s.nextID++
	stored := &model.Account{
		ID:          s.nextID,
		DisplayName: acct.DisplayName,
		Email:       acct.Email,
		SecretHash:  acct.SecretHash,
		Role:        acct.Role,
		ParentID:    cloneID(acct.ParentID),
		CreatedByID: cloneID(acct.CreatedByID),
		Photo:       acct.Photo,
		Active:      true,
		CreatedAt:   createdAt.UTC(),
	}
	s.accounts[stored.ID] = stored
	s.byEmail[key] = stored.ID

	return copyAccount(stored), nil
}

// GetByID returns the account with id, active or not.
func (s *AccountStore) GetByID(_ context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("get account %d: %w", id, driven.ErrAccountNotFound)
	}
	cp := copyAccount(acct)
	return &cp, nil
}

// GetByEmail returns the account with email, compared case-insensitively.
func (s *AccountStore) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("get account %s: %w", email, driven.ErrAccountNotFound)
	}
	cp := copyAccount(s.accounts[id])
	return &cp, nil
}

// ListChildren returns accounts parented by any of parentIDs, ordered by id.
func (s *AccountStore) ListChildren(_ context.Context, parentIDs []int64, activeOnly bool) ([]model.Account, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	parents := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Account
	for _, acct := range s.accounts {
		if acct.ParentID == nil || (activeOnly && !acct.Active) {
			continue
		}
		if _, ok := parents[*acct.ParentID]; ok {
			out = append(out, copyAccount(acct))
		}
	}
	slices.SortFunc(out, func(a, b model.Account) int { return compareInt64(a.ID, b.ID) })
	return out, nil
}

// ListActive returns active accounts, newest first.
func (s *AccountStore) ListActive(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Account
	for _, acct := range s.accounts {
		if acct.Active {
			out = append(out, copyAccount(acct))
		}
	}
	slices.SortFunc(out, func(a, b model.Account) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareInt64(b.ID, a.ID)
	})
	return out, nil
}

// Update applies the non-nil fields of patch.
func (s *AccountStore) Update(_ context.Context, id int64, patch model.AccountPatch) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("update account %d: %w", id, driven.ErrAccountNotFound)
	}

	if patch.Email != nil {
		newKey := emailKey(*patch.Email)
		oldKey := emailKey(acct.Email)
		if owner, taken := s.byEmail[newKey]; taken && owner != id {
			return model.Account{}, fmt.Errorf("update account %d: %w", id, driven.ErrEmailTaken)
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = id
		acct.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		acct.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		acct.Role = *patch.Role
	}
	if patch.Photo != nil {
		acct.Photo = *patch.Photo
	}

	return copyAccount(acct), nil
}

// SetSecretHash replaces the stored hash.
func (s *AccountStore) SetSecretHash(_ context.Context, id int64, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("set secret for account %d: %w", id, driven.ErrAccountNotFound)
	}
	acct.SecretHash = secretHash
	return nil
}

// SetActive toggles the soft-delete flag.
func (s *AccountStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("set active for account %d: %w", id, driven.ErrAccountNotFound)
	}
	acct.Active = active
	return nil
}

// Count returns the number of accounts, active or not.
func (s *AccountStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// SetParentForTest rewires an account's parent without any checks. It exists
// so tests can build corrupted hierarchies the public API refuses to create.
func (s *AccountStore) SetParentForTest(id int64, parentID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id]; ok {
		acct.ParentID = cloneID(parentID)
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyAccount(a *model.Account) model.Account {
	cp := *a
	cp.ParentID = cloneID(a.ParentID)
	cp.CreatedByID = cloneID(a.CreatedByID)
	return cp
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
