package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/authz"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// NewCredentialInput carries the fields for storing a credential. Secret is
// not checked against the account password policy.
type NewCredentialInput struct {
	Label           string
	Platform        model.Platform
	ServiceEmail    string
	ServiceUsername string
	Secret          string
	Photo           string
	Notes           string
	Status          model.CredentialStatus // Empty means active.
	ExpiresAt       *time.Time
}

// CredentialView is a credential together with the viewer's access level.
type CredentialView struct {
	Credential model.Credential
	Level      model.AccessLevel
}

// ShareView is an active share with the grantee account resolved.
type ShareView struct {
	Share   model.Share
	Grantee model.Account
}

// VaultService stores credentials and governs who may read, edit, delete
// and share them.
type VaultService struct {
	creds    driven.CredentialStore
	shares   driven.ShareStore
	logs     driven.AccessLogStore
	accounts driven.AccountStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewVaultService creates a new VaultService. A nil logger uses slog.Default.
func NewVaultService(
	creds driven.CredentialStore,
	shares driven.ShareStore,
	logs driven.AccessLogStore,
	accounts driven.AccountStore,
	logger *slog.Logger,
) *VaultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VaultService{
		creds:    creds,
		shares:   shares,
		logs:     logs,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateCredential stores a credential owned by owner.
func (s *VaultService) CreateCredential(ctx context.Context, owner model.Account, in NewCredentialInput) (model.Credential, error) {
	in.Label = strings.TrimSpace(in.Label)
	in.ServiceEmail = strings.TrimSpace(in.ServiceEmail)
	in.ServiceUsername = strings.TrimSpace(in.ServiceUsername)

	if missing := missingFields(map[string]string{
		"label":         in.Label,
		"service_email": in.ServiceEmail,
		"secret":        in.Secret,
	}); len(missing) > 0 {
		return model.Credential{}, apperr.ErrMissingField.WithDetails(missing...)
	}
	if !in.Platform.Valid() {
		return model.Credential{}, apperr.ErrInvalidPlatform.WithDetails(string(in.Platform))
	}
	if in.Status == "" {
		in.Status = model.StatusActive
	}
	if !in.Status.Valid() {
		return model.Credential{}, apperr.ErrInvalidStatus.WithDetails(string(in.Status))
	}

	cred, err := s.creds.Create(ctx, model.Credential{
		Label:           in.Label,
		Platform:        in.Platform,
		ServiceEmail:    in.ServiceEmail,
		ServiceUsername: in.ServiceUsername,
		Secret:          in.Secret,
		Photo:           in.Photo,
		Notes:           in.Notes,
		Status:          in.Status,
		CreatedAt:       s.now().UTC(),
		ExpiresAt:       in.ExpiresAt,
		OwnerID:         owner.ID,
	})
	if errors.Is(err, driven.ErrCredentialExists) {
		return model.Credential{}, apperr.ErrDuplicateCredential
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("create credential: %w", err)
	}

	s.logger.Info("credential created", "credential_id", cred.ID, "owner_id", owner.ID, "platform", cred.Platform)
	return cred, nil
}

// AccessLevel derives account's access to cred. Ownership always wins.
func (s *VaultService) AccessLevel(ctx context.Context, cred model.Credential, account model.Account) (model.AccessLevel, error) {
	if cred.IsOwnedBy(account.ID) {
		return model.AccessOwner, nil
	}

	share, err := s.shares.GetActive(ctx, cred.ID, account.ID)
	if errors.Is(err, driven.ErrShareNotFound) {
		return model.AccessNone, nil
	}
	if err != nil {
		return model.AccessNone, fmt.Errorf("load share: %w", err)
	}
	return authz.CredentialAccess(cred, account.ID, share), nil
}

// CanAccess reports whether account owns cred or holds an active share on it.
func (s *VaultService) CanAccess(ctx context.Context, cred model.Credential, account model.Account) (bool, error) {
	level, err := s.AccessLevel(ctx, cred, account)
	return authz.CanAccessLevel(level), err
}

// CanEdit reports whether account is the owner or holds ReadWrite or Admin.
func (s *VaultService) CanEdit(ctx context.Context, cred model.Credential, account model.Account) (bool, error) {
	level, err := s.AccessLevel(ctx, cred, account)
	return authz.CanEditLevel(level), err
}

// CanDelete reports whether account is the owner or holds Admin.
func (s *VaultService) CanDelete(ctx context.Context, cred model.Credential, account model.Account) (bool, error) {
	level, err := s.AccessLevel(ctx, cred, account)
	return authz.CanDeleteLevel(level), err
}

// Share grants the account registered under granteeEmail access to the
// credential. Only the owner may share.
func (s *VaultService) Share(ctx context.Context, credentialID int64, grantor model.Account, granteeEmail string, level model.AccessLevel) (model.Share, error) {
	if !level.Grantable() {
		return model.Share{}, apperr.ErrInvalidLevel.WithDetails(string(level))
	}

	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return model.Share{}, err
	}
	if !cred.IsOwnedBy(grantor.ID) {
		return model.Share{}, apperr.ErrNotOwner
	}

	grantee, err := s.accounts.GetByEmail(ctx, normalizeEmail(granteeEmail))
	if errors.Is(err, driven.ErrAccountNotFound) || (err == nil && !grantee.Active) {
		return model.Share{}, apperr.ErrGranteeNotFound
	}
	if err != nil {
		return model.Share{}, fmt.Errorf("load grantee: %w", err)
	}
	if grantee.ID == grantor.ID {
		return model.Share{}, apperr.ErrSelfShare
	}

	share, err := s.shares.Create(ctx, model.Share{
		CredentialID: cred.ID,
		GranteeID:    grantee.ID,
		Level:        level,
		SharedAt:     s.now().UTC(),
	})
	if errors.Is(err, driven.ErrShareExists) {
		return model.Share{}, apperr.ErrAlreadyShared
	}
	if err != nil {
		return model.Share{}, fmt.Errorf("create share: %w", err)
	}

	s.logger.Info("credential shared", "credential_id", cred.ID, "grantee_id", grantee.ID, "level", level)
	return share, nil
}

// Unshare revokes granteeID's active share on the credential. Only the owner
// may unshare.
func (s *VaultService) Unshare(ctx context.Context, credentialID int64, grantor model.Account, granteeID int64) error {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if !cred.IsOwnedBy(grantor.ID) {
		return apperr.ErrNotOwner
	}

	err = s.shares.Deactivate(ctx, cred.ID, granteeID)
	if errors.Is(err, driven.ErrShareNotFound) {
		return apperr.ErrNotShared
	}
	if err != nil {
		return fmt.Errorf("deactivate share: %w", err)
	}

	s.logger.Info("credential unshared", "credential_id", cred.ID, "grantee_id", granteeID)
	return nil
}

// Delete soft-deletes the credential. Shares and access logs keep pointing
// at the row.
func (s *VaultService) Delete(ctx context.Context, credentialID int64, actor model.Account) error {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return err
	}

	ok, err := s.CanDelete(ctx, cred, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden
	}

	if err := s.creds.Deactivate(ctx, cred.ID); err != nil {
		if errors.Is(err, driven.ErrCredentialNotFound) {
			return apperr.ErrCredentialNotFound
		}
		return fmt.Errorf("deactivate credential: %w", err)
	}

	s.logger.Info("credential deleted", "credential_id", cred.ID, "actor_id", actor.ID)
	return nil
}

// RecordAccess appends an access log entry. A failure to write is logged and
// never returned.
func (s *VaultService) RecordAccess(ctx context.Context, cred model.Credential, actor model.Account, meta model.AccessMeta, succeeded bool, note string) {
	err := s.logs.Append(ctx, model.AccessLog{
		CredentialID:  cred.ID,
		ActorID:       actor.ID,
		At:            s.now().UTC(),
		SourceAddress: meta.SourceAddress,
		ClientInfo:    meta.ClientInfo,
		Succeeded:     succeeded,
		Note:          note,
	})
	if err != nil {
		s.logger.Error("access log write failed",
			"credential_id", cred.ID,
			"actor_id", actor.ID,
			"succeeded", succeeded,
			"error", err,
		)
	}
}

// Reveal returns the credential including its secret. Every attempt,
// allowed or not, is recorded.
func (s *VaultService) Reveal(ctx context.Context, actor model.Account, credentialID int64, meta model.AccessMeta) (CredentialView, error) {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return CredentialView{}, err
	}

	level, err := s.AccessLevel(ctx, cred, actor)
	if err != nil {
		return CredentialView{}, err
	}
	if !authz.CanAccessLevel(level) {
		s.RecordAccess(ctx, cred, actor, meta, false, "access denied")
		return CredentialView{}, apperr.ErrForbidden
	}

	s.RecordAccess(ctx, cred, actor, meta, true, "")

	now := s.now().UTC()
	if err := s.creds.TouchLastAccessed(ctx, cred.ID, now); err != nil {
		s.logger.Warn("failed to touch last access", "credential_id", cred.ID, "error", err)
	} else {
		cred.LastAccessedAt = &now
	}

	return CredentialView{Credential: cred, Level: level}, nil
}

// ListVisible returns the credentials actor owns or holds an active share on,
// newest first. Secrets are blanked; use Reveal to read one.
func (s *VaultService) ListVisible(ctx context.Context, actor model.Account) ([]CredentialView, error) {
	owned, err := s.creds.ListOwnedBy(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list owned credentials: %w", err)
	}

	shares, err := s.shares.ListActiveByGrantee(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	levels := make(map[int64]model.AccessLevel, len(shares))
	ids := make([]int64, 0, len(shares))
	for _, sh := range shares {
		levels[sh.CredentialID] = sh.Level
		ids = append(ids, sh.CredentialID)
	}

	shared, err := s.creds.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list shared credentials: %w", err)
	}

	views := make([]CredentialView, 0, len(owned)+len(shared))
	for _, c := range owned {
		c.Secret = ""
		views = append(views, CredentialView{Credential: c, Level: model.AccessOwner})
	}
	for _, c := range shared {
		if c.IsOwnedBy(actor.ID) {
			continue
		}
		c.Secret = ""
		views = append(views, CredentialView{Credential: c, Level: levels[c.ID]})
	}

	slices.SortStableFunc(views, func(a, b CredentialView) int {
		return b.Credential.CreatedAt.Compare(a.Credential.CreatedAt)
	})
	return views, nil
}

// Update edits a credential. Requires owner, ReadWrite or Admin access.
func (s *VaultService) Update(ctx context.Context, actor model.Account, credentialID int64, patch model.CredentialPatch) (model.Credential, error) {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return model.Credential{}, err
	}

	ok, err := s.CanEdit(ctx, cred, actor)
	if err != nil {
		return model.Credential{}, err
	}
	if !ok {
		return model.Credential{}, apperr.ErrForbidden
	}

	if err := normalizeCredentialPatch(&patch); err != nil {
		return model.Credential{}, err
	}

	updated, err := s.creds.Update(ctx, cred.ID, patch)
	switch {
	case errors.Is(err, driven.ErrCredentialExists):
		return model.Credential{}, apperr.ErrDuplicateCredential
	case errors.Is(err, driven.ErrCredentialNotFound):
		return model.Credential{}, apperr.ErrCredentialNotFound
	case err != nil:
		return model.Credential{}, fmt.Errorf("update credential: %w", err)
	}

	s.logger.Info("credential updated", "credential_id", cred.ID, "actor_id", actor.ID)
	return updated, nil
}

// ListShares returns the active shares on a credential. Owner only.
func (s *VaultService) ListShares(ctx context.Context, actor model.Account, credentialID int64) ([]ShareView, error) {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !cred.IsOwnedBy(actor.ID) {
		return nil, apperr.ErrNotOwner
	}

	shares, err := s.shares.ListActiveByCredential(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	views := make([]ShareView, 0, len(shares))
	for _, sh := range shares {
		grantee, err := s.accounts.GetByID(ctx, sh.GranteeID)
		if err != nil {
			return nil, fmt.Errorf("load grantee %d: %w", sh.GranteeID, err)
		}
		views = append(views, ShareView{Share: sh, Grantee: *grantee})
	}
	return views, nil
}

// AccessHistory returns the newest access log entries for a credential.
// Visible to the owner and to Admin-level grantees.
func (s *VaultService) AccessHistory(ctx context.Context, actor model.Account, credentialID int64, limit int) ([]model.AccessLog, error) {
	cred, err := s.activeCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	level, err := s.AccessLevel(ctx, cred, actor)
	if err != nil {
		return nil, err
	}
	if level != model.AccessOwner && level != model.AccessAdmin {
		return nil, apperr.ErrForbidden
	}

	entries, err := s.logs.ListByCredential(ctx, cred.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list access log: %w", err)
	}
	return entries, nil
}

// ActorHistory returns the newest access log entries recorded for actor's
// own reads, across every credential.
func (s *VaultService) ActorHistory(ctx context.Context, actor model.Account, limit int) ([]model.AccessLog, error) {
	entries, err := s.logs.ListByActor(ctx, actor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list access log: %w", err)
	}
	return entries, nil
}

// Platforms returns the platform catalog.
func (s *VaultService) Platforms() []model.CatalogEntry {
	return slices.Clone(model.Platforms)
}

// Statuses returns the credential status catalog.
func (s *VaultService) Statuses() []model.CatalogEntry {
	return slices.Clone(model.Statuses)
}

func (s *VaultService) activeCredential(ctx context.Context, id int64) (model.Credential, error) {
	cred, err := s.creds.GetByID(ctx, id)
	if errors.Is(err, driven.ErrCredentialNotFound) {
		return model.Credential{}, apperr.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("load credential: %w", err)
	}
	if !cred.Active {
		return model.Credential{}, apperr.ErrCredentialNotFound
	}
	return *cred, nil
}

func normalizeCredentialPatch(p *model.CredentialPatch) error {
	trimRequired := func(field string, v **string) error {
		if *v == nil {
			return nil
		}
		t := strings.TrimSpace(**v)
		if t == "" {
			return apperr.ErrMissingField.WithDetails(field)
		}
		*v = &t
		return nil
	}

	if err := trimRequired("label", &p.Label); err != nil {
		return err
	}
	if err := trimRequired("service_email", &p.ServiceEmail); err != nil {
		return err
	}
	if p.Secret != nil && *p.Secret == "" {
		return apperr.ErrMissingField.WithDetails("secret")
	}
	if p.ServiceUsername != nil {
		u := strings.TrimSpace(*p.ServiceUsername)
		p.ServiceUsername = &u
	}
	if p.Platform != nil && !p.Platform.Valid() {
		return apperr.ErrInvalidPlatform.WithDetails(string(*p.Platform))
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.ErrInvalidStatus.WithDetails(string(*p.Status))
	}
	return nil
}
