package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/adapter/driven/memory"
	"github.com/ericfisherdev/sharevault/internal/adapter/driven/session"
	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/apperr"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

func newAuth(t *testing.T, e *env) *application.AuthService {
	t.Helper()
	gw, err := session.NewJWTGateway([]byte(strings.Repeat("k", session.MinKeyLength)), time.Hour, e.accounts, memory.NewRevocationStore())
	require.NoError(t, err)
	return application.NewAuthService(e.accounts, plainHasher{}, gw, gw, nil)
}

func TestLogin_RoundTrip(t *testing.T) {
	e := newEnv(t)
	auth := newAuth(t, e)
	ctx := context.Background()
	acct := e.mustCreate(t, "root@example.com", model.RoleAdmin, nil)

	sess, err := auth.Login(ctx, "  ROOT@example.com ", goodSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, acct.ID, sess.Account.ID)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	resolved, err := auth.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, resolved.ID)

	require.NoError(t, auth.Logout(ctx, sess.Token))

	_, err = auth.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	// Logging out twice is harmless.
	require.NoError(t, auth.Logout(ctx, sess.Token))
}

func TestLogin_Rejections(t *testing.T) {
	e := newEnv(t)
	auth := newAuth(t, e)
	ctx := context.Background()
	admin := e.mustCreate(t, "root@example.com", model.RoleAdmin, nil)
	gone := e.mustCreate(t, "gone@example.com", model.RoleMember, &admin)
	require.NoError(t, e.svc.Deactivate(ctx, admin, gone.ID))

	tests := []struct {
		name   string
		email  string
		secret string
	}{
		{name: "unknown email", email: "nobody@example.com", secret: goodSecret},
		{name: "wrong secret", email: "root@example.com", secret: "Wrong123!"},
		{name: "inactive account", email: "gone@example.com", secret: goodSecret},
		{name: "blank secret", email: "root@example.com", secret: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, tt.email, tt.secret)
			assert.ErrorIs(t, err, apperr.ErrBadLogin)
			assert.Equal(t, apperr.KindNotAuthenticated, apperr.KindOf(err))
		})
	}
}

func TestAuthenticate_DeactivatedAfterLogin(t *testing.T) {
	e := newEnv(t)
	auth := newAuth(t, e)
	ctx := context.Background()
	admin := e.mustCreate(t, "root@example.com", model.RoleAdmin, nil)
	member := e.mustCreate(t, "member@example.com", model.RoleMember, &admin)

	sess, err := auth.Login(ctx, "member@example.com", goodSecret)
	require.NoError(t, err)

	require.NoError(t, e.svc.Deactivate(ctx, admin, member.ID))

	_, err = auth.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}
