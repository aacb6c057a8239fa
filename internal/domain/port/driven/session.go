package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// SessionGateway resolves bearer tokens into account identities. The core
// consumes it and never reads identity from ambient state.
type SessionGateway interface {
	// ResolveIdentity returns the active account behind token, or an
	// apperr.ErrNotAuthenticated-kind error.
	ResolveIdentity(ctx context.Context, token string) (model.Account, error)

	// Invalidate revokes token. Invalidating an unknown or already-revoked
	// token is not an error.
	Invalidate(ctx context.Context, token string) error
}

// SessionIssuer mints tokens for an authenticated account.
type SessionIssuer interface {
	Issue(ctx context.Context, acct model.Account) (token string, expiresAt time.Time, err error)
}

// RevocationStore persists revoked session ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// PurgeExpired deletes revocations whose token would have expired by now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
