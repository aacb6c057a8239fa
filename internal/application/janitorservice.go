package application

import (
	"context"
	"log/slog"
	"time"
)

// RevocationPurger drops session revocations whose tokens have expired.
type RevocationPurger interface {
	PurgeRevoked(ctx context.Context) (int64, error)
}

// JanitorService periodically purges expired session revocations so the
// revocation table only holds tokens that could still be presented.
type JanitorService struct {
	purger   RevocationPurger
	interval time.Duration
	logger   *slog.Logger
	purgeCh  chan chan purgeResult
}

type purgeResult struct {
	n   int64
	err error
}

// NewJanitorService creates a new JanitorService. interval <= 0 defaults to
// one hour.
func NewJanitorService(purger RevocationPurger, interval time.Duration, logger *slog.Logger) *JanitorService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JanitorService{
		purger:   purger,
		interval: interval,
		logger:   logger,
		purgeCh:  make(chan chan purgeResult),
	}
}

// Start runs an immediate purge, then purges on the configured interval. It
// also serves PurgeNow requests. Start blocks until the context is canceled.
func (s *JanitorService) Start(ctx context.Context) {
	s.purge(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			s.purge(ctx)
		case done := <-s.purgeCh:
			n, err := s.purge(ctx)
			done <- purgeResult{n: n, err: err}
		}
	}
}

// PurgeNow triggers a purge outside the schedule and waits for it. It
// blocks until the purge completes or the context is canceled.
func (s *JanitorService) PurgeNow(ctx context.Context) (int64, error) {
	done := make(chan purgeResult, 1)

	select {
	case s.purgeCh <- done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-done:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *JanitorService) purge(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeRevoked(ctx)
	if err != nil {
		s.logger.Error("purge revoked sessions failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged revoked sessions", "count", n)
	}
	return n, nil
}
