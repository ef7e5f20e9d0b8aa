package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// DefaultAttendanceIncrement is added to a student's attendance per verified
// check-in.
const DefaultAttendanceIncrement = 1.0

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceCommand credits one check-in to the record identified by
// SubjectID, which is the name (or email) the face was registered under.
type MarkAttendanceCommand struct {
	SubjectID string
}

// AttendanceResult is the record state after a check-in.
type AttendanceResult struct {
	StudentID      string            `json:"studentId"`
	Attendance     float64           `json:"attendance"`
	PredictedScore float64           `json:"predictedScore"`
	RiskLevel      student.RiskLevel `json:"riskLevel"`
}

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	repo      student.Repository
	model     *student.ScoreModel
	increment float64
	events    eventSink
	logger    *slog.Logger
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler. A
// non-positive increment falls back to DefaultAttendanceIncrement.
func NewMarkAttendanceHandler(
	repo student.Repository,
	model *student.ScoreModel,
	increment float64,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *MarkAttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if increment <= 0 {
		increment = DefaultAttendanceIncrement
	}
	logger = logger.With("component", "attendance")
	return &MarkAttendanceHandler{
		repo:      repo,
		model:     model,
		increment: increment,
		events:    newEventSink(publisher, logger),
		logger:    logger,
	}
}

// Handle executes the command. Attendance is capped at 100 and the score is
// recomputed from the new attendance.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*AttendanceResult, error) {
	subject := strings.TrimSpace(cmd.SubjectID)
	if subject == "" {
		return nil, shared.NewDomainError("attendance", "MarkAttendance", shared.ErrEmptyValue, "subject id is required")
	}

	rec, err := h.find(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("mark_attendance: %w", err)
	}

	inputs := rec.Inputs
	inputs.Attendance = student.Clamp(inputs.Attendance+h.increment, 0, 100)
	score, risk := h.model.Evaluate(inputs)

	patch := student.Patch{
		Attendance:     &inputs.Attendance,
		PredictedScore: &score,
		RiskLevel:      &risk,
	}
	if err := h.repo.Patch(ctx, rec.ID, patch); err != nil {
		return nil, fmt.Errorf("mark_attendance: %w", err)
	}

	h.logger.Info("attendance marked", "student_id", rec.ID, "subject_id", subject, "attendance", inputs.Attendance)
	h.events.publish(shared.NewAttendanceMarkedEvent(rec.ID, subject, inputs.Attendance))

	return &AttendanceResult{
		StudentID:      rec.ID,
		Attendance:     inputs.Attendance,
		PredictedScore: score,
		RiskLevel:      risk,
	}, nil
}

// find picks the lowest-id record matching subject, so duplicate names
// resolve the same way on every call.
func (h *MarkAttendanceHandler) find(ctx context.Context, subject string) (*student.Record, error) {
	roster, err := h.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	student.SortByID(roster)

	for i := range roster {
		if roster[i].MatchesIdentity(subject, subject) {
			return &roster[i], nil
		}
	}
	return nil, shared.ErrStudentRecordAbsent
}
