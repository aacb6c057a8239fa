package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// Sentinel errors returned by AccountStore implementations.
var (
	// ErrAccountNotFound indicates no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken indicates another account (active or not) already uses the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrStoreNotEmpty is returned by CreateIfEmpty when any account exists.
	ErrStoreNotEmpty = errors.New("account store is not empty")
)

// AccountStore defines the driven port for account persistence.
// Emails are unique across all accounts; implementations must enforce this
// atomically with the insert. Stores never hash secrets: SecretHash arrives hashed.
type AccountStore interface {
	Create(ctx context.Context, acct model.NewAccount) (model.Account, error)

	// CreateIfEmpty inserts acct only if no account exists at all, atomically.
	CreateIfEmpty(ctx context.Context, acct model.NewAccount) (model.Account, error)

	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)

	// ListChildren returns accounts whose parent is any of parentIDs, ordered by id.
	ListChildren(ctx context.Context, parentIDs []int64, activeOnly bool) ([]model.Account, error)

	// ListActive returns every active account ordered by creation time, newest first.
	ListActive(ctx context.Context) ([]model.Account, error)

	Update(ctx context.Context, id int64, patch model.AccountPatch) (model.Account, error)
	SetSecretHash(ctx context.Context, id int64, secretHash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Count(ctx context.Context) (int, error)
}
