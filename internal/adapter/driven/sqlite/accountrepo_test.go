package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

func makeAccount(email string, role model.Role, parentID *int64) model.NewAccount {
	return model.NewAccount{
		DisplayName: "Test " + email,
		Email:       email,
		SecretHash:  "hash",
		Role:        role,
		ParentID:    parentID,
		CreatedByID: parentID,
		CreatedAt:   time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
	}
}

// addTestAccount inserts an account required for foreign key constraints.
func addTestAccount(t *testing.T, db *DB, email string, role model.Role, parentID *int64) model.Account {
	t.Helper()
	acct, err := NewAccountRepo(db).Create(context.Background(), makeAccount(email, role, parentID))
	require.NoError(t, err)
	return acct
}

func TestAccountRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	root, err := repo.Create(ctx, makeAccount("root@example.com", model.RoleAdmin, nil))
	require.NoError(t, err)
	assert.NotZero(t, root.ID)
	assert.True(t, root.Active)
	assert.True(t, root.IsRoot())

	child, err := repo.Create(ctx, makeAccount("child@example.com", model.RoleMember, &root.ID))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "child@example.com", got.Email)
	assert.Equal(t, model.RoleMember, got.Role)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, root.ID, *got.ParentID)
	require.NotNil(t, got.CreatedByID)
	assert.Equal(t, root.ID, *got.CreatedByID)
	assert.Equal(t, time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC), got.CreatedAt)
}

func TestAccountRepo_CreateDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeAccount("dup@example.com", model.RoleAdmin, nil))
	require.NoError(t, err)

	_, err = repo.Create(ctx, makeAccount("DUP@example.com", model.RoleMember, nil))
	assert.ErrorIs(t, err, driven.ErrEmailTaken)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccountRepo_CreateUnknownParent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	missing := int64(999)
	_, err := repo.Create(context.Background(), makeAccount("orphan@example.com", model.RoleMember, &missing))
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}

func TestAccountRepo_CreateIfEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	first, err := repo.CreateIfEmpty(ctx, makeAccount("first@example.com", model.RoleAdmin, nil))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = repo.CreateIfEmpty(ctx, makeAccount("second@example.com", model.RoleAdmin, nil))
	assert.ErrorIs(t, err, driven.ErrStoreNotEmpty)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccountRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}

func TestAccountRepo_GetByEmailCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	addTestAccount(t, db, "mixed@example.com", model.RoleAdmin, nil)

	got, err := NewAccountRepo(db).GetByEmail(context.Background(), "MIXED@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", got.Email)
}

func TestAccountRepo_ListChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	root := addTestAccount(t, db, "root@example.com", model.RoleAdmin, nil)
	a := addTestAccount(t, db, "a@example.com", model.RoleManager, &root.ID)
	b := addTestAccount(t, db, "b@example.com", model.RoleManager, &root.ID)
	c := addTestAccount(t, db, "c@example.com", model.RoleMember, &a.ID)
	d := addTestAccount(t, db, "d@example.com", model.RoleMember, &b.ID)

	children, err := repo.ListChildren(ctx, []int64{root.ID}, true)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, a.ID, children[0].ID)
	assert.Equal(t, b.ID, children[1].ID)

	require.NoError(t, repo.SetActive(ctx, d.ID, false))

	grand, err := repo.ListChildren(ctx, []int64{a.ID, b.ID}, true)
	require.NoError(t, err)
	require.Len(t, grand, 1)
	assert.Equal(t, c.ID, grand[0].ID)

	all, err := repo.ListChildren(ctx, []int64{a.ID, b.ID}, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := repo.ListChildren(ctx, nil, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAccountRepo_ListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	root := addTestAccount(t, db, "root@example.com", model.RoleAdmin, nil)
	older := makeAccount("older@example.com", model.RoleMember, &root.ID)
	older.CreatedAt = older.CreatedAt.Add(time.Hour)
	newer := makeAccount("newer@example.com", model.RoleMember, &root.ID)
	newer.CreatedAt = newer.CreatedAt.Add(2 * time.Hour)

	o, err := repo.Create(ctx, older)
	require.NoError(t, err)
	n, err := repo.Create(ctx, newer)
	require.NoError(t, err)

	require.NoError(t, repo.SetActive(ctx, o.ID, false))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, n.ID, active[0].ID)
	assert.Equal(t, root.ID, active[1].ID)
}

func TestAccountRepo_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	root := addTestAccount(t, db, "root@example.com", model.RoleAdmin, nil)
	other := addTestAccount(t, db, "other@example.com", model.RoleMember, &root.ID)

	name := "Renamed"
	role := model.RoleManager
	updated, err := repo.Update(ctx, other.ID, model.AccountPatch{DisplayName: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DisplayName)
	assert.Equal(t, model.RoleManager, updated.Role)
	assert.Equal(t, "other@example.com", updated.Email)

	taken := "root@example.com"
	_, err = repo.Update(ctx, other.ID, model.AccountPatch{Email: &taken})
	assert.ErrorIs(t, err, driven.ErrEmailTaken)

	_, err = repo.Update(ctx, 999, model.AccountPatch{DisplayName: &name})
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}

func TestAccountRepo_SetSecretHashAndActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	acct := addTestAccount(t, db, "root@example.com", model.RoleAdmin, nil)

	require.NoError(t, repo.SetSecretHash(ctx, acct.ID, "new-hash"))
	require.NoError(t, repo.SetActive(ctx, acct.ID, false))

	got, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.SecretHash)
	assert.False(t, got.Active)

	assert.ErrorIs(t, repo.SetSecretHash(ctx, 999, "x"), driven.ErrAccountNotFound)
	assert.ErrorIs(t, repo.SetActive(ctx, 999, true), driven.ErrAccountNotFound)
}
