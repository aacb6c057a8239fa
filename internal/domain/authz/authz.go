// Package authz holds the pure authorization rules over accounts and
// credentials. Functions here never touch storage; callers load whatever
// relationships a decision needs and pass them in.
//
// Account management is one hop for managers: a manager
// manages accounts it created or directly parents, not their descendants,
// even though descendants are visible to it.
package authz

import (
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// CanCreateSubordinate reports whether actor may create accounts.
func CanCreateSubordinate(actor model.Account) bool {
	return actor.Role == model.RoleAdmin || actor.Role == model.RoleManager
}

// CanManage reports whether actor may manage target.
func CanManage(actor, target model.Account) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleManager:
		return target.WasCreatedBy(actor.ID) || target.HasParent(actor.ID)
	default:
		return false
	}
}

// CanGrantRole reports whether actor may assign role to another account.
// An actor never grants a role above its own.
func CanGrantRole(actor model.Account, role model.Role) bool {
	return role.Valid() && role.Rank() <= actor.Role.Rank()
}

// RequireCreateSubordinate returns a permission error unless actor may create accounts.
func RequireCreateSubordinate(actor model.Account) error {
	if !CanCreateSubordinate(actor) {
		return apperr.Permission("cannot_create_subordinate", "only administrators and managers may create accounts")
	}
	return nil
}

// RequireManage returns a permission error unless actor may manage target.
func RequireManage(actor, target model.Account) error {
	if !CanManage(actor, target) {
		return apperr.Permission("cannot_manage", "not permitted to manage this account")
	}
	return nil
}

// RequireGrantRole returns a permission error unless actor may assign role.
func RequireGrantRole(actor model.Account, role model.Role) error {
	if !role.Valid() {
		return apperr.ErrInvalidRole
	}
	if !CanGrantRole(actor, role) {
		return apperr.Permission("cannot_grant_role", "cannot assign a role above your own")
	}
	return nil
}

// CredentialAccess derives account's access level on cred. share is the
// account's active share on cred, or nil. Ownership always wins over any
// share row.
func CredentialAccess(cred model.Credential, accountID int64, share *model.Share) model.AccessLevel {
	if cred.IsOwnedBy(accountID) {
		return model.AccessOwner
	}
	if share == nil || !share.Active || share.CredentialID != cred.ID || share.GranteeID != accountID {
		return model.AccessNone
	}
	if !share.Level.Grantable() {
		return model.AccessNone
	}
	return share.Level
}

// CanAccessLevel reports whether level permits reading the credential.
func CanAccessLevel(level model.AccessLevel) bool {
	return level != model.AccessNone && level != ""
}

// CanEditLevel reports whether level permits editing the credential.
func CanEditLevel(level model.AccessLevel) bool {
	switch level {
	case model.AccessOwner, model.AccessReadWrite, model.AccessAdmin:
		return true
	}
	return false
}

// CanDeleteLevel reports whether level permits deleting the credential.
func CanDeleteLevel(level model.AccessLevel) bool {
	return level == model.AccessOwner || level == model.AccessAdmin
}
