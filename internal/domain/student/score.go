package student

import (
	"math"
	"math/rand/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE MODEL
// ══════════════════════════════════════════════════════════════════════════════

// RandomSource supplies the perturbation term of the score model.
// NextFloat must return a value in [0, 1).
type RandomSource interface {
	NextFloat() float64
}

// MathRandSource draws from math/rand/v2.
type MathRandSource struct{}

// NextFloat implements RandomSource.
func (MathRandSource) NextFloat() float64 { return rand.Float64() }

// FixedSource always returns the same value. FixedSource(0.5) removes the
// perturbation entirely.
type FixedSource float64

// NextFloat implements RandomSource.
func (f FixedSource) NextFloat() float64 { return float64(f) }

// Weights are the per-feature weights of the weighted sum. They add up to 1.
type Weights struct {
	PastScore       float64
	Attendance      float64
	StudyHours      float64
	Assignments     float64
	Participation   float64
	ExtraActivities float64
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		PastScore:       0.35,
		Attendance:      0.25,
		StudyHours:      0.20,
		Assignments:     0.10,
		Participation:   0.05,
		ExtraActivities: 0.05,
	}
}

const (
	// PerturbationSpan is the width of the uniform noise added to the base score.
	PerturbationSpan = 5.0

	// StudyHoursCeiling is the daily study time that saturates the study feature.
	StudyHoursCeiling = 8.0

	// Risk thresholds. A score equal to a threshold falls into the safer tier.
	HighRiskBelow   = 40.0
	MediumRiskBelow = 60.0
)

var tierValues = map[string]float64{
	"low":    0.3,
	"none":   0.3,
	"medium": 0.6,
	"some":   0.6,
	"high":   1.0,
	"many":   1.0,
}

func tierValue(tier string) float64 {
	if v, ok := tierValues[tier]; ok {
		return v
	}
	return 0.6
}

// ScoreModel predicts a score from student inputs. It is safe for concurrent
// use if its RandomSource is.
type ScoreModel struct {
	weights Weights
	rng     RandomSource
}

// NewScoreModel creates a model with the default weights. A nil source falls
// back to math/rand.
func NewScoreModel(rng RandomSource) *ScoreModel {
	if rng == nil {
		rng = MathRandSource{}
	}
	return &ScoreModel{weights: DefaultWeights(), rng: rng}
}

// BaseScore is the weighted sum scaled to a percentage, before noise and
// adjustments.
func (m *ScoreModel) BaseScore(in Inputs) float64 {
	in = in.WithDefaults()
	w := m.weights

	sum := w.Attendance*(in.Attendance/100) +
		w.StudyHours*math.Min(in.StudyHours/StudyHoursCeiling, 1) +
		w.PastScore*(in.PastScore/100) +
		w.Assignments*(in.Assignments/100) +
		w.Participation*tierValue(string(in.Participation)) +
		w.ExtraActivities*tierValue(string(in.ExtraActivities))

	return sum * 100
}

// Predict returns the predicted score in [0, 100] rounded to one decimal.
func (m *ScoreModel) Predict(in Inputs) float64 {
	score := m.BaseScore(in)
	score += (m.rng.NextFloat() - 0.5) * PerturbationSpan
	score = Adjust(score, in)
	return Round1(Clamp(score, 0, 100))
}

// Evaluate predicts the score and classifies it.
func (m *ScoreModel) Evaluate(in Inputs) (float64, RiskLevel) {
	score := m.Predict(in)
	return score, Classify(score)
}

// Score recomputes the derived fields of a record from its inputs.
func (m *ScoreModel) Score(r *Record) {
	r.Inputs = r.Inputs.WithDefaults()
	r.PredictedScore, r.RiskLevel = m.Evaluate(r.Inputs)
}

// Adjust applies the conditional multipliers in order. Each gate is
// independent, so several can compound.
func Adjust(score float64, in Inputs) float64 {
	if in.Attendance < 60 && in.StudyHours < 2 {
		score *= 0.85
	}
	if in.Attendance > 90 && in.StudyHours > 5 {
		score *= 1.1
	}
	if in.PastScore < 40 && in.Attendance < 70 {
		score *= 0.9
	}
	return score
}

// Classify maps a score to its risk tier.
func Classify(score float64) RiskLevel {
	switch {
	case score < HighRiskBelow:
		return RiskHigh
	case score < MediumRiskBelow:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round1 rounds half away from zero at the tenths digit.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
