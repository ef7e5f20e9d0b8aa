package query

import (
	"context"

	"github.com/edupredict/student-insight/internal/application/command"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREDICT PREVIEW QUERY
// Scores a what-if input without storing it. Saving goes through
// command.SavePredictionCommand, which scores again.
// ══════════════════════════════════════════════════════════════════════════════

// PredictPreviewQuery scores Input for any signed-in user.
type PredictPreviewQuery struct {
	Actor *identity.Session
	Input command.StudentInput
}

// PredictionDTO is the preview result.
type PredictionDTO struct {
	Input          student.Inputs         `json:"input"`
	PredictedScore float64                `json:"predictedScore"`
	RiskLevel      student.RiskLevel      `json:"riskLevel"`
	Interventions  []student.Intervention `json:"interventions"`
}

// PredictionHandler handles PredictPreviewQuery.
type PredictionHandler struct {
	model *student.ScoreModel
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(model *student.ScoreModel) *PredictionHandler {
	return &PredictionHandler{model: model}
}

// Handle executes the query. The name is not needed for a preview.
func (h *PredictionHandler) Handle(_ context.Context, q PredictPreviewQuery) (*PredictionDTO, error) {
	if q.Actor == nil {
		return nil, shared.ErrSessionExpired
	}
	if q.Input.Name == "" {
		q.Input.Name = "preview"
	}
	if err := q.Input.Validate(); err != nil {
		return nil, err
	}

	inputs := q.Input.Inputs()
	score, risk := h.model.Evaluate(inputs)
	rec := &student.Record{Inputs: inputs, PredictedScore: score, RiskLevel: risk}

	return &PredictionDTO{
		Input:          inputs,
		PredictedScore: score,
		RiskLevel:      risk,
		Interventions:  student.DeriveInterventions(rec),
	}, nil
}
