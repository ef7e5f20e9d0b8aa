// Package query contains the read use cases. Dashboard reads are served from
// the synchronized roster mirror; list and export reads go to the store.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/edupredict/student-insight/internal/application/eventhandler"
	"github.com/edupredict/student-insight/internal/application/projection"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
	"github.com/edupredict/student-insight/internal/infrastructure/messaging"
)

// RosterSource is the synchronized roster. SyncChannel implements it.
type RosterSource interface {
	Snapshot() []student.Record
	Status() messaging.SyncStatus
}

// AlertSource lists recently raised teacher alerts.
type AlertSource interface {
	Recent() []eventhandler.Alert
}

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery asks for the role-specific dashboard of Actor.
type GetDashboardQuery struct {
	Actor  *identity.Session
	Filter projection.TableFilter
}

// Validate validates the query.
func (q *GetDashboardQuery) Validate() error {
	if q.Actor == nil {
		return shared.ErrSessionExpired
	}
	return q.Filter.Validate()
}

// DashboardDTO is the projected view plus sync metadata.
type DashboardDTO struct {
	View       *projection.View     `json:"view"`
	Alerts     []eventhandler.Alert `json:"alerts,omitempty"`
	SyncStatus messaging.SyncStatus `json:"syncStatus"`
	Students   int                  `json:"students"`
	RenderedAt time.Time            `json:"renderedAt"`
}

// DashboardHandler handles GetDashboardQuery.
type DashboardHandler struct {
	roster RosterSource
	alerts AlertSource
	logger *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler. alerts may be nil.
func NewDashboardHandler(roster RosterSource, alerts AlertSource, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{roster: roster, alerts: alerts, logger: logger.With("component", "dashboard")}
}

// Handle executes the query. Only teachers receive the alert history.
func (h *DashboardHandler) Handle(_ context.Context, q GetDashboardQuery) (*DashboardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	snapshot := h.roster.Snapshot()
	view, err := projection.ProjectFiltered(q.Actor, snapshot, q.Filter)
	if err != nil {
		return nil, err
	}

	dto := &DashboardDTO{
		View:       view,
		SyncStatus: h.roster.Status(),
		Students:   len(snapshot),
		RenderedAt: time.Now(),
	}

	if _, isTeacher := q.Actor.Role.(identity.Teacher); isTeacher && h.alerts != nil {
		dto.Alerts = h.alerts.Recent()
	}

	h.logger.Debug("dashboard rendered", "user_id", q.Actor.UserID, "role", q.Actor.Role.Name(), "students", dto.Students)
	return dto, nil
}
