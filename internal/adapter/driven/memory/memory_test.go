package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

func TestAccountStore_ConcurrentDuplicateEmail(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		taken   int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, model.NewAccount{Email: "race@example.com", Role: model.RoleMember})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, driven.ErrEmailTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, taken)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestShareStore_ConcurrentDuplicateShare(t *testing.T) {
	store := NewShareStore()
	ctx := context.Background()

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, model.Share{CredentialID: 7, GranteeID: 3, Level: model.AccessRead})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, driven.ErrShareExists):
				exists++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, exists)

	active, err := store.ListActiveByCredential(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAccountStore_EmailCaseAndUpdate(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	a, err := store.Create(ctx, model.NewAccount{Email: "a@example.com", Role: model.RoleAdmin})
	require.NoError(t, err)
	b, err := store.Create(ctx, model.NewAccount{Email: "b@example.com", Role: model.RoleMember, ParentID: &a.ID})
	require.NoError(t, err)

	_, err = store.Create(ctx, model.NewAccount{Email: "A@EXAMPLE.COM", Role: model.RoleMember})
	assert.ErrorIs(t, err, driven.ErrEmailTaken)

	got, err := store.GetByEmail(ctx, "B@example.com")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	taken := "a@example.com"
	_, err = store.Update(ctx, b.ID, model.AccountPatch{Email: &taken})
	assert.ErrorIs(t, err, driven.ErrEmailTaken)

	fresh := "b2@example.com"
	_, err = store.Update(ctx, b.ID, model.AccountPatch{Email: &fresh})
	require.NoError(t, err)
	_, err = store.GetByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)

	// Returned accounts are copies.
	got.DisplayName = "mutated"
	again, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.DisplayName)
}

func TestAccountStore_CreateIfEmpty(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	_, err := store.CreateIfEmpty(ctx, model.NewAccount{Email: "first@example.com", Role: model.RoleAdmin})
	require.NoError(t, err)

	_, err = store.CreateIfEmpty(ctx, model.NewAccount{Email: "second@example.com", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, driven.ErrStoreNotEmpty)
}

func TestCredentialStore_IdentityUniqueness(t *testing.T) {
	store := NewCredentialStore()
	ctx := context.Background()

	base := model.Credential{ServiceEmail: "svc@example.com", Platform: model.PlatformNetflix, OwnerID: 1, Secret: "s"}

	first, err := store.Create(ctx, base)
	require.NoError(t, err)

	dup := base
	dup.ServiceEmail = "SVC@example.com"
	_, err = store.Create(ctx, dup)
	assert.ErrorIs(t, err, driven.ErrCredentialExists)

	other := base
	other.Platform = model.PlatformHulu
	second, err := store.Create(ctx, other)
	require.NoError(t, err)

	// Moving the second credential onto the first's identity conflicts.
	netflix := model.PlatformNetflix
	_, err = store.Update(ctx, second.ID, model.CredentialPatch{Platform: &netflix})
	assert.ErrorIs(t, err, driven.ErrCredentialExists)

	require.NoError(t, store.Deactivate(ctx, first.ID))
	_, err = store.Create(ctx, base)
	require.NoError(t, err)
}

func TestShareStore_Lifecycle(t *testing.T) {
	store := NewShareStore()
	ctx := context.Background()

	_, err := store.Create(ctx, model.Share{CredentialID: 1, GranteeID: 2, Level: model.AccessRead})
	require.NoError(t, err)

	_, err = store.Create(ctx, model.Share{CredentialID: 1, GranteeID: 2, Level: model.AccessAdmin})
	assert.ErrorIs(t, err, driven.ErrShareExists)

	require.NoError(t, store.Deactivate(ctx, 1, 2))
	assert.ErrorIs(t, store.Deactivate(ctx, 1, 2), driven.ErrShareNotFound)

	_, err = store.GetActive(ctx, 1, 2)
	assert.ErrorIs(t, err, driven.ErrShareNotFound)

	_, err = store.Create(ctx, model.Share{CredentialID: 1, GranteeID: 2, Level: model.AccessAdmin})
	require.NoError(t, err)

	active, err := store.ListActiveByCredential(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, model.AccessAdmin, active[0].Level)
}

func TestAccessLogStore_NewestFirstWithLimit(t *testing.T) {
	store := NewAccessLogStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, store.Append(ctx, model.AccessLog{CredentialID: 7, ActorID: int64(i % 2), At: base.Add(time.Duration(i) * time.Second)}))
	}

	entries, err := store.ListByCredential(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, base.Add(4*time.Second), entries[0].At)

	byActor, err := store.ListByActor(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	store.FailAppend = errors.New("disk full")
	assert.Error(t, store.Append(ctx, model.AccessLog{CredentialID: 7}))
}

func TestRevocationStore(t *testing.T) {
	store := NewRevocationStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Revoke(ctx, "old", now.Add(-time.Minute)))
	require.NoError(t, store.Revoke(ctx, "new", now.Add(time.Minute)))

	n, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := store.IsRevoked(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}
