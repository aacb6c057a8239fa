package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/adapter/driven/memory"
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

var testKey = []byte(strings.Repeat("k", MinKeyLength))

type fixture struct {
	gw       *JWTGateway
	accounts *memory.AccountStore
	acct     model.Account
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		accounts: memory.NewAccountStore(),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	acct, err := f.accounts.Create(context.Background(), model.NewAccount{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Role:        model.RoleAdmin,
	})
	require.NoError(t, err)
	f.acct = acct

	gw, err := NewJWTGateway(testKey, time.Hour, f.accounts, memory.NewRevocationStore(),
		WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.gw = gw

	return f
}

func TestNewJWTGateway_ShortKey(t *testing.T) {
	_, err := NewJWTGateway([]byte("short"), time.Hour, memory.NewAccountStore(), memory.NewRevocationStore())
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestJWTGateway_IssueAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, exp, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(time.Hour), exp)

	got, err := f.gw.ResolveIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, f.acct.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestJWTGateway_ResolveRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)

	other, err := NewJWTGateway([]byte(strings.Repeat("x", MinKeyLength)), time.Hour, f.accounts, memory.NewRevocationStore())
	require.NoError(t, err)
	foreign, _, err := other.Issue(ctx, f.acct)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "x", Subject: "1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong key", token: foreign},
		{name: "alg none", token: unsigned},
		{name: "tampered", token: tamper(token)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gw.ResolveIdentity(ctx, tt.token)
			assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
			assert.Equal(t, apperr.KindNotAuthenticated, apperr.KindOf(err))
		})
	}
}

func TestJWTGateway_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)

	_, err = f.gw.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	assert.NoError(t, f.gw.Invalidate(ctx, token), "invalidating an expired token is a no-op")
}

func TestJWTGateway_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)

	require.NoError(t, f.accounts.SetActive(ctx, f.acct.ID, false))

	_, err = f.gw.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestJWTGateway_Invalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)
	keep, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)

	require.NoError(t, f.gw.Invalidate(ctx, token))
	require.NoError(t, f.gw.Invalidate(ctx, token), "second invalidate is a no-op")
	require.NoError(t, f.gw.Invalidate(ctx, "garbage"))

	_, err = f.gw.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = f.gw.ResolveIdentity(ctx, keep)
	assert.NoError(t, err, "other sessions stay valid")
}

func TestJWTGateway_PurgeRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, _, err := f.gw.Issue(ctx, f.acct)
	require.NoError(t, err)
	require.NoError(t, f.gw.Invalidate(ctx, token))

	n, err := f.gw.PurgeRevoked(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(2 * time.Hour)
	n, err = f.gw.PurgeRevoked(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// tamper flips the first character of the signature segment.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 1
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}
