package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RevocationStore = (*RevocationRepo)(nil)

// RevocationRepo is the SQLite implementation of the RevocationStore port interface.
type RevocationRepo struct {
	db *DB
}

// NewRevocationRepo creates a new RevocationRepo backed by the given DB.
func NewRevocationRepo(db *DB) *RevocationRepo {
	return &RevocationRepo{db: db}
}

// Revoke records tokenID as revoked. Revoking twice is a no-op.
func (r *RevocationRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	const query = `INSERT OR IGNORE INTO revoked_sessions (token_id, expires_at) VALUES (?, ?)`

	if _, err := r.db.Writer.ExecContext(ctx, query, tokenID, formatTime(expiresAt)); err != nil {
		return fmt.Errorf("revoke session %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (r *RevocationRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE token_id = ?)`

	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query, tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check session %s: %w", tokenID, err)
	}
	return exists, nil
}

// PurgeExpired deletes revocations whose token expired before now.
func (r *RevocationRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM revoked_sessions WHERE expires_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}
