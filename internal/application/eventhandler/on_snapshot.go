// Package eventhandler reacts to roster snapshots and domain events. Handlers
// here only produce side effects such as alerts and audit logs; they never
// write to the roster.
package eventhandler

import (
	"log/slog"
	"sync"

	"github.com/edupredict/student-insight/internal/application/projection"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// HIGH RISK ALERTER
// Watches roster snapshots and raises the teacher alert when the number of
// high-risk students changes to a non-zero value.
// ═══════════════════════════════════════════════════════════════════════════

// HighRiskAlerter publishes a HighRiskAlertEvent for each snapshot whose
// high-risk count is non-zero and differs from the previous snapshot's. A
// burst of snapshots with the same count raises one alert.
type HighRiskAlerter struct {
	publisher shared.EventPublisher
	logger    *slog.Logger

	mu   sync.Mutex
	last int
}

// NewHighRiskAlerter creates a new alerter.
func NewHighRiskAlerter(publisher shared.EventPublisher, logger *slog.Logger) *HighRiskAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HighRiskAlerter{
		publisher: publisher,
		logger:    logger.With("handler", "high_risk_alerter"),
	}
}

// OnSnapshot is a SyncChannel consumer.
func (h *HighRiskAlerter) OnSnapshot(records []student.Record) {
	count := 0
	for i := range records {
		if records[i].RiskLevel == student.RiskHigh {
			count++
		}
	}

	h.mu.Lock()
	changed := count != h.last
	h.last = count
	h.mu.Unlock()

	if !changed || count == 0 {
		return
	}

	event := shared.NewHighRiskAlertEvent(count, projection.HighRiskAlertMessage(count))
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("failed to publish alert", "count", count, "error", err)
	}
}

// LastCount returns the high-risk count of the last snapshot seen.
func (h *HighRiskAlerter) LastCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
