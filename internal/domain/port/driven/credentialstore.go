package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrCredentialNotFound indicates no credential matches the lookup.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists indicates the owner already has an active credential
	// with the same service email and platform.
	ErrCredentialExists = errors.New("credential already exists")
)

// CredentialStore defines the driven port for credential persistence.
// Secrets cross this boundary as plaintext; persistent adapters seal them
// before write and open them after read.
type CredentialStore interface {
	Create(ctx context.Context, cred model.Credential) (model.Credential, error)

	// GetByID returns the credential whether active or not.
	GetByID(ctx context.Context, id int64) (*model.Credential, error)

	// ListOwnedBy returns the owner's active credentials, newest first.
	ListOwnedBy(ctx context.Context, ownerID int64) ([]model.Credential, error)

	// ListByIDs returns the active credentials among ids, newest first.
	ListByIDs(ctx context.Context, ids []int64) ([]model.Credential, error)

	Update(ctx context.Context, id int64, patch model.CredentialPatch) (model.Credential, error)
	Deactivate(ctx context.Context, id int64) error
	TouchLastAccessed(ctx context.Context, id int64, at time.Time) error
}
