package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// SessionPurger drops expired sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgeSessionsJob removes expired sessions from a store that does not
// expire them on its own. Redis-backed sessions carry a TTL and do not
// need it.
type PurgeSessionsJob struct {
	store  SessionPurger
	logger *slog.Logger
}

func NewPurgeSessionsJob(store SessionPurger, logger *slog.Logger) *PurgeSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeSessionsJob{store: store, logger: logger.With("job", "purge_sessions")}
}

func (j *PurgeSessionsJob) Name() string { return "purge_sessions" }

func (j *PurgeSessionsJob) Description() string {
	return "Drop expired sign-in sessions"
}

func (j *PurgeSessionsJob) Run(ctx context.Context) error {
	n, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	if n > 0 {
		j.logger.Info("expired sessions purged", "count", n)
	}
	return nil
}
