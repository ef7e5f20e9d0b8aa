package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD / UPDATE / DELETE STUDENT
// Staff-only roster writes. Scores are always recomputed from the inputs.
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentCommand adds a roster record.
type AddStudentCommand struct {
	Actor *identity.Session
	Input StudentInput
}

// Validate validates the command.
func (c *AddStudentCommand) Validate() error {
	c.Input.normalize()
	return validateStruct("add_student", c.Input)
}

// UpdateStudentCommand overwrites every input of an existing record.
type UpdateStudentCommand struct {
	Actor *identity.Session
	ID    string
	Input StudentInput
}

// Validate validates the command.
func (c *UpdateStudentCommand) Validate() error {
	if c.ID == "" {
		return shared.ErrInvalidStudentID
	}
	c.Input.normalize()
	return validateStruct("update_student", c.Input)
}

// DeleteStudentCommand removes a record. Confirmed must be set; an
// unconfirmed delete is rejected without touching the store.
type DeleteStudentCommand struct {
	Actor     *identity.Session
	ID        string
	Confirmed bool
}

// Validate validates the command.
func (c *DeleteStudentCommand) Validate() error {
	if c.ID == "" {
		return shared.ErrInvalidStudentID
	}
	if !c.Confirmed {
		return shared.ErrDeleteNotConfirmed
	}
	return nil
}

// StudentResult is the stored record after a write.
type StudentResult struct {
	Record        *student.Record        `json:"record"`
	Interventions []student.Intervention `json:"interventions"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler
// ─────────────────────────────────────────────────────────────────────────────

// RosterHandler handles the staff roster commands.
type RosterHandler struct {
	repo   student.Repository
	model  *student.ScoreModel
	events eventSink
	logger *slog.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(
	repo student.Repository,
	model *student.ScoreModel,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RosterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "roster_commands")
	return &RosterHandler{
		repo:   repo,
		model:  model,
		events: newEventSink(publisher, logger),
		logger: logger,
	}
}

// Add executes AddStudentCommand.
func (h *RosterHandler) Add(ctx context.Context, cmd AddStudentCommand) (*StudentResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return nil, fmt.Errorf("add_student: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	rec := buildRecord(h.model, cmd.Input)
	id, err := h.repo.Add(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("add_student: %w", err)
	}
	rec.ID = id

	h.logger.Info("student added", "id", id, "risk", rec.RiskLevel, "actor", actorID(cmd.Actor))
	h.events.publish(shared.NewStudentChangedEvent(
		shared.EventStudentAdded, id, rec.Name, rec.PredictedScore, string(rec.RiskLevel), actorID(cmd.Actor),
	))

	return &StudentResult{Record: rec, Interventions: student.DeriveInterventions(rec)}, nil
}

// Update executes UpdateStudentCommand. Identity and creation metadata of
// the stored record are kept.
func (h *RosterHandler) Update(ctx context.Context, cmd UpdateStudentCommand) (*StudentResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := h.repo.Get(ctx, cmd.ID)
	if err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}

	rec := buildRecord(h.model, cmd.Input)
	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt

	if err := h.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}

	h.logger.Info("student updated", "id", rec.ID, "risk", rec.RiskLevel, "actor", actorID(cmd.Actor))
	h.events.publish(shared.NewStudentChangedEvent(
		shared.EventStudentUpdated, rec.ID, rec.Name, rec.PredictedScore, string(rec.RiskLevel), actorID(cmd.Actor),
	))

	return &StudentResult{Record: rec, Interventions: student.DeriveInterventions(rec)}, nil
}

// Delete executes DeleteStudentCommand.
func (h *RosterHandler) Delete(ctx context.Context, cmd DeleteStudentCommand) error {
	if err := requireStaff(cmd.Actor); err != nil {
		return fmt.Errorf("delete_student: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	if err := h.repo.Delete(ctx, cmd.ID); err != nil {
		return fmt.Errorf("delete_student: %w", err)
	}

	h.logger.Info("student deleted", "id", cmd.ID, "actor", actorID(cmd.Actor))
	h.events.publish(shared.NewStudentChangedEvent(
		shared.EventStudentDeleted, cmd.ID, "", 0, "", actorID(cmd.Actor),
	))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAVE PREDICTION
// Persists a prediction preview as a new roster record.
// ══════════════════════════════════════════════════════════════════════════════

// SavePredictionCommand stores a previewed prediction. Prediction is nil when
// nothing was previewed.
type SavePredictionCommand struct {
	Actor      *identity.Session
	RollNo     string
	Prediction *StudentInput
}

// Validate validates the command.
func (c *SavePredictionCommand) Validate() error {
	if c.Prediction == nil {
		return shared.ErrNoPredictionToSave
	}
	if c.RollNo == "" {
		return shared.ErrRollNumberRequired
	}
	c.Prediction.RollNo = c.RollNo
	c.Prediction.normalize()
	if c.Prediction.RollNo == "" {
		return shared.ErrRollNumberRequired
	}
	return validateStruct("save_prediction", *c.Prediction)
}

// SavePrediction executes SavePredictionCommand. The score is recomputed, so
// it can differ from the preview by the model's perturbation.
func (h *RosterHandler) SavePrediction(ctx context.Context, cmd SavePredictionCommand) (*StudentResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return nil, fmt.Errorf("save_prediction: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.Add(ctx, AddStudentCommand{Actor: cmd.Actor, Input: *cmd.Prediction})
}
