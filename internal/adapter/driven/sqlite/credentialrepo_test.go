package sqlite

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// stubSealer is a reversible, non-cryptographic sealer for repo tests.
type stubSealer struct{}

func (stubSealer) Seal(plaintext string) (string, error) {
	return "sealed:" + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (stubSealer) Open(sealed string) (string, error) {
	raw, ok := strings.CutPrefix(sealed, "sealed:")
	if !ok {
		return "", errors.New("not sealed")
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	return string(b), err
}

func makeCredential(ownerID int64, email string, platform model.Platform) model.Credential {
	return model.Credential{
		Label:        "Family " + string(platform),
		Platform:     platform,
		ServiceEmail: email,
		Secret:       "hunter2",
		Notes:        "shared with **family**",
		Status:       model.StatusActive,
		CreatedAt:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		OwnerID:      ownerID,
	}
}

// addTestCredential inserts a credential required for foreign key constraints.
func addTestCredential(t *testing.T, db *DB, ownerID int64, email string) model.Credential {
	t.Helper()
	cred, err := NewCredentialRepo(db, stubSealer{}).Create(context.Background(), makeCredential(ownerID, email, model.PlatformNetflix))
	require.NoError(t, err)
	return cred
}

func TestCredentialRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	repo := NewCredentialRepo(db, stubSealer{})
	ctx := context.Background()

	expiry := time.Date(2026, 12, 31, 18, 30, 0, 0, time.UTC)
	in := makeCredential(owner.ID, "svc@example.com", model.PlatformSpotify)
	in.ExpiresAt = &expiry

	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Secret)
	assert.Equal(t, model.PlatformSpotify, got.Platform)
	assert.Equal(t, owner.ID, got.OwnerID)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *got.ExpiresAt)
	assert.Nil(t, got.LastAccessedAt)
}

func TestCredentialRepo_SecretIsSealedAtRest(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	cred := addTestCredential(t, db, owner.ID, "svc@example.com")

	var stored string
	err := db.Reader.QueryRowContext(context.Background(),
		`SELECT secret_sealed FROM credentials WHERE id = ?`, cred.ID).Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "hunter2")
	assert.True(t, strings.HasPrefix(stored, "sealed:"))
}

func TestCredentialRepo_DuplicateIdentity(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	other := addTestAccount(t, db, "other@example.com", model.RoleMember, &owner.ID)
	repo := NewCredentialRepo(db, stubSealer{})
	ctx := context.Background()

	first, err := repo.Create(ctx, makeCredential(owner.ID, "svc@example.com", model.PlatformNetflix))
	require.NoError(t, err)

	_, err = repo.Create(ctx, makeCredential(owner.ID, "SVC@example.com", model.PlatformNetflix))
	assert.ErrorIs(t, err, driven.ErrCredentialExists)

	// Same identity on another platform or for another owner is fine.
	_, err = repo.Create(ctx, makeCredential(owner.ID, "svc@example.com", model.PlatformHulu))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential(other.ID, "svc@example.com", model.PlatformNetflix))
	require.NoError(t, err)

	// A deactivated credential frees its identity.
	require.NoError(t, repo.Deactivate(ctx, first.ID))
	_, err = repo.Create(ctx, makeCredential(owner.ID, "svc@example.com", model.PlatformNetflix))
	require.NoError(t, err)
}

func TestCredentialRepo_ListOwnedByAndIDs(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	repo := NewCredentialRepo(db, stubSealer{})
	ctx := context.Background()

	a := makeCredential(owner.ID, "a@example.com", model.PlatformNetflix)
	b := makeCredential(owner.ID, "b@example.com", model.PlatformNetflix)
	b.CreatedAt = b.CreatedAt.Add(time.Hour)
	c := makeCredential(owner.ID, "c@example.com", model.PlatformNetflix)
	c.CreatedAt = c.CreatedAt.Add(2 * time.Hour)

	ca, err := repo.Create(ctx, a)
	require.NoError(t, err)
	cb, err := repo.Create(ctx, b)
	require.NoError(t, err)
	cc, err := repo.Create(ctx, c)
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, cb.ID))

	owned, err := repo.ListOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, cc.ID, owned[0].ID)
	assert.Equal(t, ca.ID, owned[1].ID)

	byIDs, err := repo.ListByIDs(ctx, []int64{ca.ID, cb.ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	assert.Equal(t, ca.ID, byIDs[0].ID)

	empty, err := repo.ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCredentialRepo_Update(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	repo := NewCredentialRepo(db, stubSealer{})
	ctx := context.Background()

	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	in := makeCredential(owner.ID, "svc@example.com", model.PlatformNetflix)
	in.ExpiresAt = &expiry
	cred, err := repo.Create(ctx, in)
	require.NoError(t, err)

	secret := "new-secret"
	status := model.StatusPending
	updated, err := repo.Update(ctx, cred.ID, model.CredentialPatch{
		Secret:      &secret,
		Status:      &status,
		ClearExpiry: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-secret", updated.Secret)
	assert.Equal(t, model.StatusPending, updated.Status)
	assert.Nil(t, updated.ExpiresAt)
	assert.Equal(t, cred.Label, updated.Label)

	require.NoError(t, repo.Deactivate(ctx, cred.ID))
	_, err = repo.Update(ctx, cred.ID, model.CredentialPatch{Secret: &secret})
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_DeactivateAndTouch(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	cred := addTestCredential(t, db, owner.ID, "svc@example.com")
	repo := NewCredentialRepo(db, stubSealer{})
	ctx := context.Background()

	at := time.Date(2026, 3, 3, 3, 3, 3, 0, time.UTC)
	require.NoError(t, repo.TouchLastAccessed(ctx, cred.ID, at))

	require.NoError(t, repo.Deactivate(ctx, cred.ID))
	assert.ErrorIs(t, repo.Deactivate(ctx, cred.ID), driven.ErrCredentialNotFound)

	got, err := repo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.LastAccessedAt)
	assert.Equal(t, at, *got.LastAccessedAt)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_NoSealer(t *testing.T) {
	db := setupTestDB(t)
	owner := addTestAccount(t, db, "owner@example.com", model.RoleAdmin, nil)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential(owner.ID, "svc@example.com", model.PlatformNetflix))
	assert.ErrorIs(t, err, driven.ErrSealKeyNotSet)

	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, driven.ErrSealKeyNotSet)

	_, err = repo.ListOwnedBy(ctx, owner.ID)
	assert.ErrorIs(t, err, driven.ErrSealKeyNotSet)
}
