package driven

import (
	"context"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
)

// AccessLogStore defines the driven port for the append-only access log.
// There is no update or delete.
type AccessLogStore interface {
	Append(ctx context.Context, entry model.AccessLog) error

	// ListByCredential returns entries newest first. limit <= 0 means no limit.
	ListByCredential(ctx context.Context, credentialID int64, limit int) ([]model.AccessLog, error)

	// ListByActor returns entries newest first. limit <= 0 means no limit.
	ListByActor(ctx context.Context, actorID int64, limit int) ([]model.AccessLog, error)
}
