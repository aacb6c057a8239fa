package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccessLogStore = (*AccessLogRepo)(nil)

// AccessLogRepo is the SQLite implementation of the AccessLogStore port interface.
type AccessLogRepo struct {
	db *DB
}

// NewAccessLogRepo creates a new AccessLogRepo backed by the given DB.
func NewAccessLogRepo(db *DB) *AccessLogRepo {
	return &AccessLogRepo{db: db}
}

const accessLogColumns = `id, credential_id, actor_id, at, source_address, client_info, succeeded, note`

// Append inserts a log entry.
func (r *AccessLogRepo) Append(ctx context.Context, entry model.AccessLog) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	const query = `INSERT INTO access_logs (credential_id, actor_id, at, source_address, client_info, succeeded, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		entry.CredentialID, entry.ActorID, formatTime(entry.At),
		entry.SourceAddress, entry.ClientInfo, entry.Succeeded, entry.Note)
	if err != nil {
		return fmt.Errorf("append access log for credential %d: %w", entry.CredentialID, err)
	}
	return nil
}

// ListByCredential returns a credential's entries, newest first.
func (r *AccessLogRepo) ListByCredential(ctx context.Context, credentialID int64, limit int) ([]model.AccessLog, error) {
	query := `SELECT ` + accessLogColumns + ` FROM access_logs WHERE credential_id = ? ORDER BY at DESC, id DESC`
	return r.list(ctx, query, limit, credentialID)
}

// ListByActor returns an account's entries, newest first.
func (r *AccessLogRepo) ListByActor(ctx context.Context, actorID int64, limit int) ([]model.AccessLog, error) {
	query := `SELECT ` + accessLogColumns + ` FROM access_logs WHERE actor_id = ? ORDER BY at DESC, id DESC`
	return r.list(ctx, query, limit, actorID)
}

func (r *AccessLogRepo) list(ctx context.Context, query string, limit int, args ...any) ([]model.AccessLog, error) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AccessLog
	for rows.Next() {
		var (
			entry model.AccessLog
			at    string
		)
		if err := rows.Scan(&entry.ID, &entry.CredentialID, &entry.ActorID, &at,
			&entry.SourceAddress, &entry.ClientInfo, &entry.Succeeded, &entry.Note); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		if entry.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse at: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access logs: %w", err)
	}

	return entries, nil
}
