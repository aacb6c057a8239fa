package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// Sentinel errors returned by ShareStore implementations.
var (
	// ErrShareNotFound indicates no active share exists for the pair.
	ErrShareNotFound = errors.New("share not found")

	// ErrShareExists indicates an active share already exists for the pair.
	ErrShareExists = errors.New("share already exists")
)

// ShareStore defines the driven port for credential shares. At most one
// active share may exist per (credential, grantee); Create enforces this
// atomically and returns ErrShareExists otherwise.
type ShareStore interface {
	Create(ctx context.Context, share model.Share) (model.Share, error)
	GetActive(ctx context.Context, credentialID, granteeID int64) (*model.Share, error)
	ListActiveByCredential(ctx context.Context, credentialID int64) ([]model.Share, error)
	ListActiveByGrantee(ctx context.Context, granteeID int64) ([]model.Share, error)

	// Deactivate marks the active share inactive. Returns ErrShareNotFound if none.
	Deactivate(ctx context.Context, credentialID, granteeID int64) error
}
