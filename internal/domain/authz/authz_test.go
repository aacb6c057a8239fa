package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

func ptr(v int64) *int64 { return &v }

func account(id int64, role model.Role, parent, creator *int64) model.Account {
	return model.Account{ID: id, Role: role, ParentID: parent, CreatedByID: creator, Active: true}
}

func TestCanCreateSubordinate(t *testing.T) {
	assert.True(t, CanCreateSubordinate(account(1, model.RoleAdmin, nil, nil)))
	assert.True(t, CanCreateSubordinate(account(2, model.RoleManager, nil, nil)))
	assert.False(t, CanCreateSubordinate(account(3, model.RoleMember, nil, nil)))

	err := RequireCreateSubordinate(account(3, model.RoleMember, nil, nil))
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	assert.NoError(t, RequireCreateSubordinate(account(2, model.RoleManager, nil, nil)))
}

func TestCanManage(t *testing.T) {
	admin := account(1, model.RoleAdmin, nil, nil)
	manager := account(2, model.RoleManager, ptr(1), ptr(1))
	child := account(3, model.RoleMember, ptr(2), ptr(2))
	parentedOnly := account(4, model.RoleMember, ptr(2), ptr(1))
	createdOnly := account(5, model.RoleMember, ptr(1), ptr(2))
	grandchild := account(6, model.RoleMember, ptr(3), ptr(3))
	stranger := account(7, model.RoleMember, nil, nil)
	member := account(8, model.RoleMember, nil, nil)

	tests := []struct {
		name   string
		actor  model.Account
		target model.Account
		want   bool
	}{
		{name: "admin manages anyone", actor: admin, target: grandchild, want: true},
		{name: "admin manages another admin", actor: admin, target: account(9, model.RoleAdmin, nil, nil), want: true},
		{name: "admin manages self", actor: admin, target: admin, want: true},
		{name: "manager manages direct child", actor: manager, target: child, want: true},
		{name: "manager manages parented account", actor: manager, target: parentedOnly, want: true},
		{name: "manager manages created account", actor: manager, target: createdOnly, want: true},
		{name: "manager does not manage grandchild", actor: manager, target: grandchild, want: false},
		{name: "manager does not manage stranger", actor: manager, target: stranger, want: false},
		{name: "manager does not manage its own parent", actor: manager, target: admin, want: false},
		{name: "member manages nobody", actor: member, target: stranger, want: false},
		{name: "member does not manage own child", actor: child, target: grandchild, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManage(tt.actor, tt.target))
			err := RequireManage(tt.actor, tt.target)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
			}
		})
	}
}

func TestCanGrantRole(t *testing.T) {
	admin := account(1, model.RoleAdmin, nil, nil)
	manager := account(2, model.RoleManager, nil, nil)

	assert.True(t, CanGrantRole(admin, model.RoleAdmin))
	assert.True(t, CanGrantRole(manager, model.RoleManager))
	assert.True(t, CanGrantRole(manager, model.RoleMember))
	assert.False(t, CanGrantRole(manager, model.RoleAdmin))
	assert.False(t, CanGrantRole(admin, model.Role("root")))

	assert.True(t, errors.Is(RequireGrantRole(admin, model.Role("root")), apperr.ErrInvalidRole))
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(RequireGrantRole(manager, model.RoleAdmin)))
}

func TestCredentialAccess(t *testing.T) {
	cred := model.Credential{ID: 10, OwnerID: 1}
	share := func(grantee int64, level model.AccessLevel, active bool) *model.Share {
		return &model.Share{CredentialID: 10, GranteeID: grantee, Level: level, Active: active}
	}

	tests := []struct {
		name      string
		accountID int64
		share     *model.Share
		want      model.AccessLevel
	}{
		{name: "owner without share", accountID: 1, share: nil, want: model.AccessOwner},
		{name: "owner wins over share row", accountID: 1, share: share(1, model.AccessRead, true), want: model.AccessOwner},
		{name: "read share", accountID: 2, share: share(2, model.AccessRead, true), want: model.AccessRead},
		{name: "read-write share", accountID: 2, share: share(2, model.AccessReadWrite, true), want: model.AccessReadWrite},
		{name: "admin share", accountID: 2, share: share(2, model.AccessAdmin, true), want: model.AccessAdmin},
		{name: "inactive share", accountID: 2, share: share(2, model.AccessAdmin, false), want: model.AccessNone},
		{name: "share for someone else", accountID: 2, share: share(3, model.AccessAdmin, true), want: model.AccessNone},
		{name: "share for another credential", accountID: 2, share: &model.Share{CredentialID: 11, GranteeID: 2, Level: model.AccessAdmin, Active: true}, want: model.AccessNone},
		{name: "no share", accountID: 2, share: nil, want: model.AccessNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CredentialAccess(cred, tt.accountID, tt.share))
		})
	}
}

func TestLevelChecks(t *testing.T) {
	tests := []struct {
		level                    model.AccessLevel
		canAccess, edit, destroy bool
	}{
		{model.AccessOwner, true, true, true},
		{model.AccessAdmin, true, true, true},
		{model.AccessReadWrite, true, true, false},
		{model.AccessRead, true, false, false},
		{model.AccessNone, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.canAccess, CanAccessLevel(tt.level))
			assert.Equal(t, tt.edit, CanEditLevel(tt.level))
			assert.Equal(t, tt.destroy, CanDeleteLevel(tt.level))
		})
	}
}
