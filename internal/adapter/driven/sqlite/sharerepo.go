package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ShareStore = (*ShareRepo)(nil)

// ShareRepo is the SQLite implementation of the ShareStore port interface.
type ShareRepo struct {
	db *DB
}

// NewShareRepo creates a new ShareRepo backed by the given DB.
func NewShareRepo(db *DB) *ShareRepo {
	return &ShareRepo{db: db}
}

const shareColumns = `id, credential_id, grantee_id, level, shared_at, active`

// Create inserts an active share. The partial unique index on active
// (credential_id, grantee_id) pairs turns a concurrent duplicate into ErrShareExists.
func (r *ShareRepo) Create(ctx context.Context, share model.Share) (model.Share, error) {
	if share.SharedAt.IsZero() {
		share.SharedAt = time.Now().UTC()
	}

	const query = `INSERT INTO shares (credential_id, grantee_id, level, shared_at, active) VALUES (?, ?, ?, ?, 1)`

	result, err := r.db.Writer.ExecContext(ctx, query,
		share.CredentialID, share.GranteeID, string(share.Level), formatTime(share.SharedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Share{}, fmt.Errorf("share credential %d with %d: %w", share.CredentialID, share.GranteeID, driven.ErrShareExists)
		}
		return model.Share{}, fmt.Errorf("share credential %d with %d: %w", share.CredentialID, share.GranteeID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Share{}, fmt.Errorf("last insert id: %w", err)
	}

	share.ID = id
	share.Active = true
	share.SharedAt = share.SharedAt.UTC()
	return share, nil
}

// GetActive returns the active share for the pair or ErrShareNotFound.
func (r *ShareRepo) GetActive(ctx context.Context, credentialID, granteeID int64) (*model.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE credential_id = ? AND grantee_id = ? AND active = 1`

	share, err := scanShare(r.db.Reader.QueryRowContext(ctx, query, credentialID, granteeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get share %d/%d: %w", credentialID, granteeID, driven.ErrShareNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get share %d/%d: %w", credentialID, granteeID, err)
	}
	return share, nil
}

// ListActiveByCredential returns active shares of a credential, oldest first.
func (r *ShareRepo) ListActiveByCredential(ctx context.Context, credentialID int64) ([]model.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE credential_id = ? AND active = 1 ORDER BY shared_at, id`
	return r.list(ctx, query, credentialID)
}

// ListActiveByGrantee returns active shares held by an account, oldest first.
func (r *ShareRepo) ListActiveByGrantee(ctx context.Context, granteeID int64) ([]model.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE grantee_id = ? AND active = 1 ORDER BY shared_at, id`
	return r.list(ctx, query, granteeID)
}

func (r *ShareRepo) list(ctx context.Context, query string, args ...any) ([]model.Share, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var shares []model.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		shares = append(shares, *share)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}

	return shares, nil
}

// Deactivate marks the active share for the pair inactive.
func (r *ShareRepo) Deactivate(ctx context.Context, credentialID, granteeID int64) error {
	const query = `UPDATE shares SET active = 0 WHERE credential_id = ? AND grantee_id = ? AND active = 1`

	result, err := r.db.Writer.ExecContext(ctx, query, credentialID, granteeID)
	if err != nil {
		return fmt.Errorf("unshare %d/%d: %w", credentialID, granteeID, err)
	}
	return requireAffected(result, fmt.Sprintf("unshare %d/%d", credentialID, granteeID), driven.ErrShareNotFound)
}

func scanShare(s scanner) (*model.Share, error) {
	var (
		share    model.Share
		level    string
		sharedAt string
	)

	if err := s.Scan(&share.ID, &share.CredentialID, &share.GranteeID, &level, &sharedAt, &share.Active); err != nil {
		return nil, err
	}

	share.Level = model.AccessLevel(level)

	var err error
	if share.SharedAt, err = parseTime(sharedAt); err != nil {
		return nil, fmt.Errorf("parse shared_at: %w", err)
	}

	return &share, nil
}
