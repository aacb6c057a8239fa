package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/sharevault/internal/domain/model"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccessLogStore = (*AccessLogStore)(nil)

// AccessLogStore is an append-only in-memory AccessLogStore.
type AccessLogStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []model.AccessLog

	// FailAppend, when set, is returned by Append. Tests use it to exercise
	// callers that must survive a broken log.
	FailAppend error
}

// NewAccessLogStore creates an empty store.
func NewAccessLogStore() *AccessLogStore {
	return &AccessLogStore{}
}

// Append adds entry.
func (s *AccessLogStore) Append(_ context.Context, entry model.AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppend != nil {
		return s.FailAppend
	}

	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	entry.At = entry.At.UTC()

	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, entry)
	return nil
}

// ListByCredential returns a credential's entries, newest first.
func (s *AccessLogStore) ListByCredential(_ context.Context, credentialID int64, limit int) ([]model.AccessLog, error) {
	return s.newestFirst(func(e model.AccessLog) bool { return e.CredentialID == credentialID }, limit), nil
}

// ListByActor returns an account's entries, newest first.
func (s *AccessLogStore) ListByActor(_ context.Context, actorID int64, limit int) ([]model.AccessLog, error) {
	return s.newestFirst(func(e model.AccessLog) bool { return e.ActorID == actorID }, limit), nil
}

func (s *AccessLogStore) newestFirst(keep func(model.AccessLog) bool, limit int) []model.AccessLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AccessLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !keep(s.entries[i]) {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
