package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharevault/internal/adapter/driven/memory"
	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/password"
)

const goodSecret = "Abcdef1!"

// plainHasher is a reversible stand-in for bcrypt so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }

func (plainHasher) Verify(hash, secret string) bool { return hash == "hashed:"+secret }

type env struct {
	accounts *memory.AccountStore
	creds    *memory.CredentialStore
	shares   *memory.ShareStore
	logs     *memory.AccessLogStore
	svc      *application.AccountService
	vault    *application.VaultService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		accounts: memory.NewAccountStore(),
		creds:    memory.NewCredentialStore(),
		shares:   memory.NewShareStore(),
		logs:     memory.NewAccessLogStore(),
	}
	e.svc = application.NewAccountService(e.accounts, plainHasher{}, password.Default(8), nil)
	e.vault = application.NewVaultService(e.creds, e.shares, e.logs, e.accounts, nil)
	return e
}

// mustCreate creates an account under parent (nil for a root) with parent as creator.
func (e *env) mustCreate(t *testing.T, email string, role model.Role, parent *model.Account) model.Account {
	t.Helper()
	in := application.NewAccountInput{
		DisplayName: email,
		Email:       email,
		Secret:      goodSecret,
		Role:        role,
	}
	if parent != nil {
		in.ParentID = &parent.ID
		in.CreatedByID = &parent.ID
	}
	acct, err := e.svc.CreateAccount(context.Background(), in)
	require.NoError(t, err)
	return acct
}

func (e *env) mustCredential(t *testing.T, owner model.Account, email string) model.Credential {
	t.Helper()
	cred, err := e.vault.CreateCredential(context.Background(), owner, application.NewCredentialInput{
		Label:        "Streaming",
		Platform:     model.PlatformNetflix,
		ServiceEmail: email,
		Secret:       "p4ss",
	})
	require.NoError(t, err)
	return cred
}

func ids(accounts []model.Account) []int64 {
	out := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ID)
	}
	return out
}
