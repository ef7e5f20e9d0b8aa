package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/infrastructure/external/face"
)

// ══════════════════════════════════════════════════════════════════════════════
// FACE ATTENDANCE
// One capture per request. A failed match is reported to the user and never
// retried automatically.
// ══════════════════════════════════════════════════════════════════════════════

// FaceVerifier captures and matches faces.
type FaceVerifier interface {
	Verify(ctx context.Context, cam face.Camera) (face.Recognition, error)
	Register(ctx context.Context, cam face.Camera, subjectID string) error
}

// VerifyAttendanceCommand identifies the face on Camera and marks attendance
// for the matched student.
type VerifyAttendanceCommand struct {
	Actor  *identity.Session
	Camera face.Camera
}

// RegisterFaceCommand enrolls the signed-in student's face under their name.
type RegisterFaceCommand struct {
	Actor  *identity.Session
	Camera face.Camera
}

// FaceResult is what the scanner shows after an attempt.
type FaceResult struct {
	Success    bool              `json:"success"`
	SubjectID  string            `json:"subjectId,omitempty"`
	Message    string            `json:"message"`
	Attendance *AttendanceResult `json:"attendance,omitempty"`
}

// FaceAttendanceHandler handles the face commands.
type FaceAttendanceHandler struct {
	verifier   FaceVerifier
	attendance *MarkAttendanceHandler
	events     eventSink
	logger     *slog.Logger
}

// NewFaceAttendanceHandler creates a new FaceAttendanceHandler.
func NewFaceAttendanceHandler(
	verifier FaceVerifier,
	attendance *MarkAttendanceHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *FaceAttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "face_attendance")
	return &FaceAttendanceHandler{
		verifier:   verifier,
		attendance: attendance,
		events:     newEventSink(publisher, logger),
		logger:     logger,
	}
}

// Verify executes VerifyAttendanceCommand. Any signed-in user may scan. The
// returned error is nil whenever a user-facing message was produced; the
// result then carries Success=false.
func (h *FaceAttendanceHandler) Verify(ctx context.Context, cmd VerifyAttendanceCommand) (*FaceResult, error) {
	if cmd.Actor == nil {
		return nil, shared.ErrSessionExpired
	}

	rec, err := h.verifier.Verify(ctx, cmd.Camera)
	if err != nil {
		return &FaceResult{Message: face.UserMessage(err)}, nil
	}

	result := &FaceResult{
		Success:   true,
		SubjectID: rec.SubjectID,
		Message:   face.VerifiedMessage(rec.SubjectID),
	}
	if h.attendance == nil {
		return result, nil
	}

	marked, err := h.attendance.Handle(ctx, MarkAttendanceCommand{SubjectID: rec.SubjectID})
	switch {
	case err == nil:
		result.Attendance = marked
		result.Message = face.AttendanceMarkedMessage(rec.SubjectID)
	case errors.Is(err, shared.ErrStudentRecordAbsent):
		// Verified face without a roster entry; keep the verified message.
		h.logger.Info("verified face has no roster record", "subject_id", rec.SubjectID)
	default:
		return nil, fmt.Errorf("verify_attendance: %w", err)
	}
	return result, nil
}

// Register executes RegisterFaceCommand. Only students may register.
func (h *FaceAttendanceHandler) Register(ctx context.Context, cmd RegisterFaceCommand) (*FaceResult, error) {
	if cmd.Actor == nil || !cmd.Actor.IsStudent() {
		return &FaceResult{Message: face.MsgStudentsOnly}, shared.ErrRoleNotPermitted
	}

	subject := cmd.Actor.Name
	if err := h.verifier.Register(ctx, cmd.Camera, subject); err != nil {
		return &FaceResult{Message: face.UserMessage(err)}, nil
	}

	h.events.publish(shared.NewFaceRegisteredEvent(cmd.Actor.UserID, subject))
	return &FaceResult{Success: true, SubjectID: subject, Message: face.MsgRegistered}, nil
}
