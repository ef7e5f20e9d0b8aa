// Package jobs holds the maintenance jobs run by the scheduler.
package jobs

import (
	"context"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESYNC ROSTER JOB
// ══════════════════════════════════════════════════════════════════════════════

// Refresher asks a roster mirror to reload.
type Refresher interface {
	Refresh() bool
	Relists() int64
}

// ResyncRosterJob forces a periodic re-list of the roster. It covers changes
// that never produced a notification, such as rows edited directly in the
// database or a relay message lost while Redis was unreachable.
type ResyncRosterJob struct {
	sync   Refresher
	logger *slog.Logger
}

// NewResyncRosterJob creates the job.
func NewResyncRosterJob(sync Refresher, logger *slog.Logger) *ResyncRosterJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResyncRosterJob{sync: sync, logger: logger.With("job", "resync_roster")}
}

func (j *ResyncRosterJob) Name() string { return "resync_roster" }

func (j *ResyncRosterJob) Description() string {
	return "Reload the roster mirror from the store"
}

// Run requests a re-list. A stopped channel is reported but not treated as
// a failure; the sync health check already covers it.
func (j *ResyncRosterJob) Run(ctx context.Context) error {
	if !j.sync.Refresh() {
		j.logger.Warn("roster sync not running, refresh skipped")
		return nil
	}
	j.logger.Debug("roster refresh requested", "relists", j.sync.Relists())
	return ctx.Err()
}
