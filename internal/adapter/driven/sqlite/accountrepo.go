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
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, display_name, email, secret_hash, role, parent_id, created_by_id, photo, active, created_at`

// Create inserts a new account. The unique email index makes the duplicate
// check and the insert a single atomic statement.
func (r *AccountRepo) Create(ctx context.Context, acct model.NewAccount) (model.Account, error) {
	const query = `INSERT INTO accounts (display_name, email, secret_hash, role, parent_id, created_by_id, photo, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`

	return r.insert(ctx, query, acct)
}

// CreateIfEmpty inserts acct only when the accounts table is empty.
func (r *AccountRepo) CreateIfEmpty(ctx context.Context, acct model.NewAccount) (model.Account, error) {
	const query = `INSERT INTO accounts (display_name, email, secret_hash, role, parent_id, created_by_id, photo, active, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, 1, ?
		WHERE NOT EXISTS (SELECT 1 FROM accounts)`

	return r.insert(ctx, query, acct)
}

func (r *AccountRepo) insert(ctx context.Context, query string, acct model.NewAccount) (model.Account, error) {
	createdAt := acct.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		acct.DisplayName,
		acct.Email,
		acct.SecretHash,
		string(acct.Role),
		nullInt64(acct.ParentID),
		nullInt64(acct.CreatedByID),
		acct.Photo,
		formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, fmt.Errorf("create account %s: %w", acct.Email, driven.ErrEmailTaken)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return model.Account{}, fmt.Errorf("create account %s: parent: %w", acct.Email, driven.ErrAccountNotFound)
		}
		return model.Account{}, fmt.Errorf("create account %s: %w", acct.Email, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return model.Account{}, fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return model.Account{}, fmt.Errorf("create account %s: %w", acct.Email, driven.ErrStoreNotEmpty)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Account{}, fmt.Errorf("last insert id: %w", err)
	}

	return model.Account{
		ID:          id,
		DisplayName: acct.DisplayName,
		Email:       acct.Email,
		SecretHash:  acct.SecretHash,
		Role:        acct.Role,
		ParentID:    acct.ParentID,
		CreatedByID: acct.CreatedByID,
		Photo:       acct.Photo,
		Active:      true,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// GetByID retrieves an account by id, active or not.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

	acct, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account %d: %w", id, driven.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}

	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive), active or not.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`

	acct, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account %s: %w", email, driven.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", email, err)
	}

	return acct, nil
}

// ListChildren returns the accounts parented by any of parentIDs, ordered by id.
func (r *AccountRepo) ListChildren(ctx context.Context, parentIDs []int64, activeOnly bool) ([]model.Account, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	marks, args := placeholders(parentIDs)
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE parent_id IN (` + marks + `)`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	return r.list(ctx, query, args...)
}

// ListActive returns every active account, newest first.
func (r *AccountRepo) ListActive(ctx context.Context) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE active = 1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Update applies the non-nil fields of patch and returns the updated account.
func (r *AccountRepo) Update(ctx context.Context, id int64, patch model.AccountPatch) (model.Account, error) {
	var (
		sets []string
		args []any
	)
	if patch.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *patch.DisplayName)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*patch.Role))
	}
	if patch.Photo != nil {
		sets = append(sets, "photo = ?")
		args = append(args, *patch.Photo)
	}

	if len(sets) > 0 {
		query := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		args = append(args, id)

		result, err := r.db.Writer.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return model.Account{}, fmt.Errorf("update account %d: %w", id, driven.ErrEmailTaken)
			}
			return model.Account{}, fmt.Errorf("update account %d: %w", id, err)
		}
		if err := requireAffected(result, fmt.Sprintf("update account %d", id), driven.ErrAccountNotFound); err != nil {
			return model.Account{}, err
		}
	}

	updated, err := r.getFromWriter(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	return *updated, nil
}

// SetSecretHash replaces the stored hash. Callers hash; the repo stores as given.
func (r *AccountRepo) SetSecretHash(ctx context.Context, id int64, secretHash string) error {
	const query = `UPDATE accounts SET secret_hash = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, secretHash, id)
	if err != nil {
		return fmt.Errorf("set secret for account %d: %w", id, err)
	}
	return requireAffected(result, fmt.Sprintf("set secret for account %d", id), driven.ErrAccountNotFound)
}

// SetActive toggles the soft-delete flag.
func (r *AccountRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE accounts SET active = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set active for account %d: %w", id, err)
	}
	return requireAffected(result, fmt.Sprintf("set active for account %d", id), driven.ErrAccountNotFound)
}

// Count returns the number of accounts, active or not.
func (r *AccountRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// getFromWriter reads through the writer so a just-committed update is visible.
func (r *AccountRepo) getFromWriter(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

	acct, err := scanAccount(r.db.Writer.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account %d: %w", id, driven.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return acct, nil
}

func scanAccount(s scanner) (*model.Account, error) {
	var (
		acct      model.Account
		role      string
		parentID  sql.NullInt64
		creatorID sql.NullInt64
		createdAt string
	)

	err := s.Scan(&acct.ID, &acct.DisplayName, &acct.Email, &acct.SecretHash, &role,
		&parentID, &creatorID, &acct.Photo, &acct.Active, &createdAt)
	if err != nil {
		return nil, err
	}

	acct.Role = model.Role(role)
	acct.ParentID = int64Ptr(parentID)
	acct.CreatedByID = int64Ptr(creatorID)

	acct.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &acct, nil
}

func requireAffected(result sql.Result, op string, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
