// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/authz"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/password"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// ErrCorruptHierarchy is returned when walking parent links revisits an
// account. The store never creates such a chain; seeing one means the data
// was modified outside the service.
var ErrCorruptHierarchy = errors.New("account hierarchy contains a cycle")

// NewAccountInput carries the fields for creating an account. Secret is the
// plaintext candidate; it is validated and hashed, never stored.
type NewAccountInput struct {
	DisplayName string
	Email       string
	Secret      string
	Role        model.Role
	ParentID    *int64
	CreatedByID *int64
	Photo       string
}

// SubordinateInput carries the fields an actor supplies when creating an
// account below itself. A nil ParentID parents the new account to the actor.
type SubordinateInput struct {
	DisplayName string
	Email       string
	Secret      string
	Role        model.Role
	ParentID    *int64
	Photo       string
}

// AccountService owns the account tree: creation, lookup, traversal and the
// actor-gated management operations built on top of them.
type AccountService struct {
	accounts driven.AccountStore
	hasher   driven.SecretHasher
	policy   *password.Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountService. A nil logger uses slog.Default.
func NewAccountService(accounts driven.AccountStore, hasher driven.SecretHasher, policy *password.Policy, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = password.Default(0)
	}
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateAccount validates and persists a new account. The duplicate-email
// check is repeated atomically by the store, so a concurrent duplicate still
// fails with apperr.ErrDuplicateEmail.
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccountInput) (model.Account, error) {
	return s.create(ctx, in, s.accounts.Create)
}

type createFunc func(context.Context, model.NewAccount) (model.Account, error)

func (s *AccountService) create(ctx context.Context, in NewAccountInput, insert createFunc) (model.Account, error) {
	in.Email = normalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if missing := missingFields(map[string]string{"display_name": in.DisplayName, "email": in.Email}); len(missing) > 0 {
		return model.Account{}, apperr.ErrMissingField.WithDetails(missing...)
	}
	if err := validateEmail(in.Email); err != nil {
		return model.Account{}, err
	}
	if !in.Role.Valid() {
		return model.Account{}, apperr.ErrInvalidRole.WithDetails(string(in.Role))
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return model.Account{}, apperr.ErrDuplicateEmail
	} else if !errors.Is(err, driven.ErrAccountNotFound) {
		return model.Account{}, fmt.Errorf("check email: %w", err)
	}

	if err := s.ValidateSecret(in.Secret); err != nil {
		return model.Account{}, err
	}

	if in.ParentID != nil {
		parent, err := s.accounts.GetByID(ctx, *in.ParentID)
		if errors.Is(err, driven.ErrAccountNotFound) || (err == nil && !parent.Active) {
			return model.Account{}, apperr.ErrAccountNotFound.WithDetails("parent")
		}
		if err != nil {
			return model.Account{}, fmt.Errorf("load parent: %w", err)
		}
	}

	hash, err := s.hashSecret(in.Secret)
	if err != nil {
		return model.Account{}, err
	}

	acct, err := insert(ctx, model.NewAccount{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		SecretHash:  hash,
		Role:        in.Role,
		ParentID:    in.ParentID,
		CreatedByID: in.CreatedByID,
		Photo:       in.Photo,
		CreatedAt:   s.now().UTC(),
	})
	switch {
	case errors.Is(err, driven.ErrEmailTaken):
		return model.Account{}, apperr.ErrDuplicateEmail
	case errors.Is(err, driven.ErrStoreNotEmpty):
		return model.Account{}, apperr.ErrAlreadyBootstrapped
	case errors.Is(err, driven.ErrAccountNotFound):
		return model.Account{}, apperr.ErrAccountNotFound.WithDetails("parent")
	case err != nil:
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account created", "account_id", acct.ID, "role", acct.Role, "parent_id", derefID(acct.ParentID))
	return acct, nil
}

// FindByEmail returns the account registered under email, active or not.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	acct, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, driven.ErrAccountNotFound) {
		return model.Account{}, apperr.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account: %w", err)
	}
	return *acct, nil
}

// GetByID returns the account with id, active or not.
func (s *AccountService) GetByID(ctx context.Context, id int64) (model.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, driven.ErrAccountNotFound) {
		return model.Account{}, apperr.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return *acct, nil
}

// DirectChildren returns the active accounts parented by acct.
func (s *AccountService) DirectChildren(ctx context.Context, acct model.Account) ([]model.Account, error) {
	children, err := s.accounts.ListChildren(ctx, []int64{acct.ID}, true)
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", acct.ID, err)
	}
	return children, nil
}

// AllDescendants returns the transitive closure of DirectChildren, level by
// level. acct itself is never included, and an account reached twice is
// expanded once.
func (s *AccountService) AllDescendants(ctx context.Context, acct model.Account) ([]model.Account, error) {
	visited := map[int64]struct{}{acct.ID: {}}
	frontier := []int64{acct.ID}

	var out []model.Account
	for len(frontier) > 0 {
		children, err := s.accounts.ListChildren(ctx, frontier, true)
		if err != nil {
			return nil, fmt.Errorf("list descendants of %d: %w", acct.ID, err)
		}

		frontier = frontier[:0]
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}

// AncestorChain returns acct's ancestors root-first, ending with acct.
func (s *AccountService) AncestorChain(ctx context.Context, acct model.Account) ([]model.Account, error) {
	chain := []model.Account{acct}
	seen := map[int64]struct{}{acct.ID: {}}

	cur := acct
	for cur.ParentID != nil {
		pid := *cur.ParentID
		if _, loop := seen[pid]; loop {
			return nil, fmt.Errorf("ancestors of %d: %w", acct.ID, ErrCorruptHierarchy)
		}
		seen[pid] = struct{}{}

		parent, err := s.accounts.GetByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("ancestors of %d: load %d: %w", acct.ID, pid, err)
		}
		chain = append(chain, *parent)
		cur = *parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Depth returns the number of ancestors of acct. A root has depth 0.
func (s *AccountService) Depth(ctx context.Context, acct model.Account) (int, error) {
	chain, err := s.AncestorChain(ctx, acct)
	if err != nil {
		return 0, err
	}
	return len(chain) - 1, nil
}

// VisibleAccounts returns every active account for an Admin and the
// descendants of actor otherwise.
func (s *AccountService) VisibleAccounts(ctx context.Context, actor model.Account) ([]model.Account, error) {
	if actor.Role == model.RoleAdmin {
		all, err := s.accounts.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		return all, nil
	}
	return s.AllDescendants(ctx, actor)
}

// ValidateSecret checks secret against the password policy without storing
// anything. The returned error carries one detail per violated rule.
func (s *AccountService) ValidateSecret(secret string) error {
	violations := s.policy.Validate(secret)
	if len(violations) == 0 {
		return nil
	}
	return apperr.ErrInvalidSecret.WithDetails(password.Messages(violations)...)
}

// hashSecret passes classified hasher errors through so a secret the hasher
// refuses still reports as a validation failure.
func (s *AccountService) hashSecret(secret string) (string, error) {
	hash, err := s.hasher.Hash(secret)
	if err == nil {
		return hash, nil
	}
	if apperr.KindOf(err) == apperr.KindValidation {
		return "", err
	}
	return "", fmt.Errorf("hash secret: %w", err)
}

// BootstrapAdmin creates the first Admin. It fails with
// apperr.ErrAlreadyBootstrapped once any account exists.
func (s *AccountService) BootstrapAdmin(ctx context.Context, displayName, email, secret string) (model.Account, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return model.Account{}, apperr.ErrAlreadyBootstrapped
	}

	return s.create(ctx, NewAccountInput{
		DisplayName: displayName,
		Email:       email,
		Secret:      secret,
		Role:        model.RoleAdmin,
	}, s.accounts.CreateIfEmpty)
}

// CreateSubordinate creates an account on behalf of actor. The new account is
// parented to actor unless another parent is named, in which case actor must
// be that parent or be able to manage it.
func (s *AccountService) CreateSubordinate(ctx context.Context, actor model.Account, in SubordinateInput) (model.Account, error) {
	if err := authz.RequireCreateSubordinate(actor); err != nil {
		return model.Account{}, err
	}
	if err := authz.RequireGrantRole(actor, in.Role); err != nil {
		return model.Account{}, err
	}

	parentID := actor.ID
	if in.ParentID != nil && *in.ParentID != actor.ID {
		parent, err := s.GetByID(ctx, *in.ParentID)
		if err != nil {
			return model.Account{}, err
		}
		if !parent.Active {
			return model.Account{}, apperr.ErrAccountNotFound.WithDetails("parent")
		}
		if err := authz.RequireManage(actor, parent); err != nil {
			return model.Account{}, err
		}
		parentID = parent.ID
	}

	creator := actor.ID
	return s.CreateAccount(ctx, NewAccountInput{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Secret:      in.Secret,
		Role:        in.Role,
		ParentID:    &parentID,
		CreatedByID: &creator,
		Photo:       in.Photo,
	})
}

// Get returns the account with id if actor may see it: itself, anything for
// an Admin, an account actor manages, or an active descendant.
func (s *AccountService) Get(ctx context.Context, actor model.Account, id int64) (model.Account, error) {
	target, err := s.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	if target.ID == actor.ID || authz.CanManage(actor, target) {
		return target, nil
	}

	visible, err := s.isDescendant(ctx, actor, target)
	if err != nil {
		return model.Account{}, err
	}
	if !visible {
		return model.Account{}, apperr.ErrForbidden
	}
	return target, nil
}

// isDescendant reports whether target is reachable from actor through
// active accounts only, matching what AllDescendants would return.
func (s *AccountService) isDescendant(ctx context.Context, actor, target model.Account) (bool, error) {
	if !target.Active {
		return false, nil
	}
	chain, err := s.AncestorChain(ctx, target)
	if err != nil {
		return false, err
	}
	for i := len(chain) - 2; i >= 0; i-- {
		if chain[i].ID == actor.ID {
			return true, nil
		}
		if !chain[i].Active {
			return false, nil
		}
	}
	return false, nil
}

// ListVisible returns the accounts actor may see.
func (s *AccountService) ListVisible(ctx context.Context, actor model.Account) ([]model.Account, error) {
	return s.VisibleAccounts(ctx, actor)
}

// ListSubordinates returns actor's direct children. Only actors that may
// create subordinates have any.
func (s *AccountService) ListSubordinates(ctx context.Context, actor model.Account) ([]model.Account, error) {
	if err := authz.RequireCreateSubordinate(actor); err != nil {
		return nil, err
	}
	return s.DirectChildren(ctx, actor)
}

// Update changes profile fields of an active account. Actors may edit
// themselves; anything else, and any role change, requires CanManage.
func (s *AccountService) Update(ctx context.Context, actor model.Account, id int64, patch model.AccountPatch) (model.Account, error) {
	target, err := s.activeTarget(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	self := target.ID == actor.ID
	if !self {
		if err := authz.RequireManage(actor, target); err != nil {
			return model.Account{}, err
		}
	}

	if patch.Role != nil && *patch.Role != target.Role {
		if self {
			return model.Account{}, apperr.Permission("cannot_change_own_role", "an account cannot change its own role")
		}
		if err := authz.RequireGrantRole(actor, *patch.Role); err != nil {
			return model.Account{}, err
		}
	}

	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return model.Account{}, apperr.ErrMissingField.WithDetails("display_name")
		}
		patch.DisplayName = &name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return model.Account{}, apperr.ErrMissingField.WithDetails("email")
		}
		if err := validateEmail(email); err != nil {
			return model.Account{}, err
		}
		patch.Email = &email
	}

	if patch.IsEmpty() {
		return target, nil
	}

	updated, err := s.accounts.Update(ctx, id, patch)
	switch {
	case errors.Is(err, driven.ErrEmailTaken):
		return model.Account{}, apperr.ErrDuplicateEmail
	case errors.Is(err, driven.ErrAccountNotFound):
		return model.Account{}, apperr.ErrAccountNotFound
	case err != nil:
		return model.Account{}, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("account updated", "account_id", id, "actor_id", actor.ID)
	return updated, nil
}

// ChangeSecret replaces an account's secret. This is the only path besides
// creation that hashes.
func (s *AccountService) ChangeSecret(ctx context.Context, actor model.Account, id int64, secret string) error {
	target, err := s.activeTarget(ctx, id)
	if err != nil {
		return err
	}
	if target.ID != actor.ID {
		if err := authz.RequireManage(actor, target); err != nil {
			return err
		}
	}

	if err := s.ValidateSecret(secret); err != nil {
		return err
	}

	hash, err := s.hashSecret(secret)
	if err != nil {
		return err
	}
	if err := s.accounts.SetSecretHash(ctx, id, hash); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}

	s.logger.Info("account secret changed", "account_id", id, "actor_id", actor.ID)
	return nil
}

// Deactivate soft-deletes an account actor manages. Accounts cannot
// deactivate themselves.
func (s *AccountService) Deactivate(ctx context.Context, actor model.Account, id int64) error {
	target, err := s.activeTarget(ctx, id)
	if err != nil {
		return err
	}
	if target.ID == actor.ID {
		return apperr.Permission("cannot_deactivate_self", "an account cannot deactivate itself")
	}
	if err := authz.RequireManage(actor, target); err != nil {
		return err
	}

	if err := s.accounts.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	s.logger.Info("account deactivated", "account_id", id, "actor_id", actor.ID)
	return nil
}

func (s *AccountService) activeTarget(ctx context.Context, id int64) (model.Account, error) {
	target, err := s.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if !target.Active {
		return model.Account{}, apperr.ErrAccountNotFound
	}
	return target, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("invalid_email", "email address is malformed", email)
	}
	return nil
}

// missingFields returns the names of empty values, sorted for stable output.
func missingFields(fields map[string]string) []string {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
