package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Secrets are sealed before write and opened after read.
type CredentialRepo struct {
	db     *DB
	sealer driven.SecretSealer // nil disables credential storage.
}

// NewCredentialRepo creates a new CredentialRepo. A nil sealer makes every
// operation that touches a secret return driven.ErrSealKeyNotSet.
func NewCredentialRepo(db *DB, sealer driven.SecretSealer) *CredentialRepo {
	return &CredentialRepo{db: db, sealer: sealer}
}

const credentialColumns = `id, label, platform, service_email, service_username, secret_sealed,
	photo, notes, status, created_at, expires_at, last_accessed_at, owner_id, active`

// Create inserts a new active credential. The partial unique index on
// (service_email, platform, owner_id) rejects a duplicate active identity.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	sealed, err := r.seal(cred.Secret)
	if err != nil {
		return model.Credential{}, err
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO credentials
		(label, platform, service_email, service_username, secret_sealed, photo, notes,
		 status, created_at, expires_at, last_accessed_at, owner_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, 1)`

	result, err := r.db.Writer.ExecContext(ctx, query,
		cred.Label,
		string(cred.Platform),
		cred.ServiceEmail,
		cred.ServiceUsername,
		sealed,
		cred.Photo,
		cred.Notes,
		string(cred.Status),
		formatTime(cred.CreatedAt),
		formatNullDate(cred.ExpiresAt),
		cred.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Credential{}, fmt.Errorf("create credential %s/%s: %w", cred.Platform, cred.ServiceEmail, driven.ErrCredentialExists)
		}
		return model.Credential{}, fmt.Errorf("create credential %s/%s: %w", cred.Platform, cred.ServiceEmail, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Credential{}, fmt.Errorf("last insert id: %w", err)
	}

	cred.ID = id
	cred.Active = true
	cred.LastAccessedAt = nil
	cred.CreatedAt = cred.CreatedAt.UTC()
	if cred.ExpiresAt != nil {
		d := truncateDate(*cred.ExpiresAt)
		cred.ExpiresAt = &d
	}
	return cred, nil
}

// GetByID retrieves a credential by id, active or not.
func (r *CredentialRepo) GetByID(ctx context.Context, id int64) (*model.Credential, error) {
	return r.get(ctx, r.db.Reader, id)
}

func (r *CredentialRepo) get(ctx context.Context, q *sql.DB, id int64) (*model.Credential, error) {
	if r.sealer == nil {
		return nil, driven.ErrSealKeyNotSet
	}

	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	cred, err := r.scanCredential(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %d: %w", id, err)
	}
	return cred, nil
}

// ListOwnedBy returns the owner's active credentials, newest first.
func (r *CredentialRepo) ListOwnedBy(ctx context.Context, ownerID int64) ([]model.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE owner_id = ? AND active = 1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, ownerID)
}

// ListByIDs returns the active credentials among ids, newest first.
func (r *CredentialRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Credential, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE id IN (` + marks + `) AND active = 1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, args...)
}

func (r *CredentialRepo) list(ctx context.Context, query string, args ...any) ([]model.Credential, error) {
	if r.sealer == nil {
		return nil, driven.ErrSealKeyNotSet
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Update applies the non-nil fields of patch to an active credential.
func (r *CredentialRepo) Update(ctx context.Context, id int64, patch model.CredentialPatch) (model.Credential, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Label != nil {
		add("label", *patch.Label)
	}
	if patch.Platform != nil {
		add("platform", string(*patch.Platform))
	}
	if patch.ServiceEmail != nil {
		add("service_email", *patch.ServiceEmail)
	}
	if patch.ServiceUsername != nil {
		add("service_username", *patch.ServiceUsername)
	}
	if patch.Secret != nil {
		sealed, err := r.seal(*patch.Secret)
		if err != nil {
			return model.Credential{}, err
		}
		add("secret_sealed", sealed)
	}
	if patch.Photo != nil {
		add("photo", *patch.Photo)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	switch {
	case patch.ClearExpiry:
		add("expires_at", sql.NullString{})
	case patch.ExpiresAt != nil:
		add("expires_at", formatNullDate(patch.ExpiresAt))
	}

	if len(sets) > 0 {
		query := `UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND active = 1`
		args = append(args, id)

		result, err := r.db.Writer.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return model.Credential{}, fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialExists)
			}
			return model.Credential{}, fmt.Errorf("update credential %d: %w", id, err)
		}
		if err := requireAffected(result, fmt.Sprintf("update credential %d", id), driven.ErrCredentialNotFound); err != nil {
			return model.Credential{}, err
		}
	}

	updated, err := r.get(ctx, r.db.Writer, id)
	if err != nil {
		return model.Credential{}, err
	}
	if !updated.Active {
		return model.Credential{}, fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	return *updated, nil
}

// Deactivate soft-deletes an active credential.
func (r *CredentialRepo) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE credentials SET active = 0 WHERE id = ? AND active = 1`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate credential %d: %w", id, err)
	}
	return requireAffected(result, fmt.Sprintf("deactivate credential %d", id), driven.ErrCredentialNotFound)
}

// TouchLastAccessed sets last_accessed_at.
func (r *CredentialRepo) TouchLastAccessed(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE credentials SET last_accessed_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch credential %d: %w", id, err)
	}
	return requireAffected(result, fmt.Sprintf("touch credential %d", id), driven.ErrCredentialNotFound)
}

func (r *CredentialRepo) seal(plaintext string) (string, error) {
	if r.sealer == nil {
		return "", driven.ErrSealKeyNotSet
	}
	sealed, err := r.sealer.Seal(plaintext)
	if err != nil {
		return "", fmt.Errorf("seal credential secret: %w", err)
	}
	return sealed, nil
}

func (r *CredentialRepo) scanCredential(s scanner) (*model.Credential, error) {
	var (
		cred         model.Credential
		platform     string
		status       string
		sealed       string
		createdAt    string
		expiresAt    sql.NullString
		lastAccessed sql.NullString
	)

	err := s.Scan(&cred.ID, &cred.Label, &platform, &cred.ServiceEmail, &cred.ServiceUsername,
		&sealed, &cred.Photo, &cred.Notes, &status, &createdAt, &expiresAt, &lastAccessed,
		&cred.OwnerID, &cred.Active)
	if err != nil {
		return nil, err
	}

	cred.Platform = model.Platform(platform)
	cred.Status = model.CredentialStatus(status)

	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cred.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if cred.LastAccessedAt, err = parseNullTime(lastAccessed); err != nil {
		return nil, fmt.Errorf("parse last_accessed_at: %w", err)
	}

	cred.Secret, err = r.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open credential %d secret: %w", cred.ID, err)
	}

	return &cred, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
