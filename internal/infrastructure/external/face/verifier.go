package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// Recognizer matches and enrolls faces. Client talks to the remote service,
// LocalRecognizer compares descriptors.
type Recognizer interface {
	Recognize(ctx context.Context, frame Frame) (Recognition, error)
	Enroll(ctx context.Context, subjectID string, frame Frame) error
}

// Verifier runs one capture-and-match attempt. It owns the camera stream for
// the duration of the attempt and releases it on every exit path.
type Verifier struct {
	recognizer Recognizer
	logger     *slog.Logger
}

// NewVerifier creates a new Verifier.
func NewVerifier(recognizer Recognizer, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{recognizer: recognizer, logger: logger.With("component", "face_verifier")}
}

// Verify captures one frame from cam and identifies it. Failures are not
// retried here; the caller decides whether to try again.
func (v *Verifier) Verify(ctx context.Context, cam Camera) (Recognition, error) {
	var result Recognition

	err := withStream(ctx, cam, func(s Stream) error {
		frame, err := s.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}

		result, err = v.recognizer.Recognize(ctx, frame)
		return err
	})
	if err != nil {
		v.logger.Info("face verification failed", "error", err)
		return Recognition{}, err
	}

	v.logger.Info("face verified", "subject_id", result.SubjectID)
	return result, nil
}

// Register captures one frame from cam and enrolls it under subjectID.
func (v *Verifier) Register(ctx context.Context, cam Camera, subjectID string) error {
	if subjectID == "" {
		return shared.NewDomainError("face", "Register", shared.ErrEmptyValue, "subject id is required")
	}

	err := withStream(ctx, cam, func(s Stream) error {
		frame, err := s.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		return v.recognizer.Enroll(ctx, subjectID, frame)
	})
	if err != nil {
		v.logger.Warn("face registration failed", "subject_id", subjectID, "error", err)
		return err
	}

	v.logger.Info("face registered", "subject_id", subjectID)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

const (
	MsgNotRecognized      = "Face not recognized. Try again."
	MsgServerError        = "Server error. Is backend running?"
	MsgCameraDenied       = "Camera access denied. Please enable camera permissions."
	MsgStudentsOnly       = "Only logged-in students can register a face."
	MsgRegistered         = "Face Registered Successfully!"
	MsgRegistrationFailed = "Registration failed."
)

// VerifiedMessage is shown as soon as a face matches.
func VerifiedMessage(subjectID string) string {
	return "Verified: " + subjectID
}

// AttendanceMarkedMessage confirms the attendance update.
func AttendanceMarkedMessage(subjectID string) string {
	return "Attendance Marked for " + subjectID
}

// UserMessage maps a verification or registration error to the text shown
// to the user. Not-found conditions get their own message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrCameraUnavailable):
		return MsgCameraDenied
	case errors.Is(err, shared.ErrRoleNotPermitted):
		return MsgStudentsOnly
	case errors.Is(err, shared.ErrRegistrationRejected):
		return MsgRegistrationFailed
	case errors.Is(err, shared.ErrFaceNotRecognized), errors.Is(err, shared.ErrFaceProfileAbsent):
		return MsgNotRecognized
	case shared.IsValidation(err):
		return MsgNotRecognized
	}
	return MsgServerError
}
