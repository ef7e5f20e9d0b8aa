package student

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqSource struct {
	values []float64
	i      int
}

func (s *seqSource) NextFloat() float64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskHigh},
		{39.9, RiskHigh},
		{40.0, RiskMedium},
		{59.9, RiskMedium},
		{60.0, RiskLow},
		{100, RiskLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %.1f", tt.score)
	}
}

func TestScoreModel_BaseScoreWeightsSumToHundred(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))

	in := Inputs{
		Attendance:      100,
		StudyHours:      8,
		PastScore:       100,
		Participation:   ParticipationHigh,
		Assignments:     100,
		ExtraActivities: ActivitiesMany,
	}

	assert.InDelta(t, 100.0, model.BaseScore(in), 1e-9)
}

func TestScoreModel_StudyHoursSaturate(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))

	eight := model.BaseScore(NewInputs(80, 8, 70))
	twelve := model.BaseScore(NewInputs(80, 12, 70))

	assert.InDelta(t, eight, twelve, 1e-9)
}

func TestScoreModel_UnknownTierDefaultsToMedium(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))

	in := NewInputs(80, 4, 70)
	known := model.BaseScore(in)

	in.Participation = "exceptional"
	in.ExtraActivities = "lots"
	assert.InDelta(t, known, model.BaseScore(in), 1e-9)
}

func TestScoreModel_DefaultsApplied(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))

	explicit := model.BaseScore(Inputs{
		Attendance: 80, StudyHours: 4, PastScore: 70,
		Participation: ParticipationMedium, Assignments: 80, ExtraActivities: ActivitiesSome,
	})

	assert.InDelta(t, explicit, model.BaseScore(NewInputs(80, 4, 70)), 1e-9)
	// 0.25*0.8 + 0.20*0.5 + 0.35*0.7 + 0.10*0.8 + 0.05*0.6 + 0.05*0.6
	assert.InDelta(t, 68.5, explicit, 1e-9)
}

func TestScoreModel_BoostOnlyAdjustment(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))
	in := NewInputs(95, 6, 90)

	base := model.BaseScore(in)
	assert.InDelta(t, base*1.1, Adjust(base, in), 1e-9)

	want := Round1(Clamp(base*1.1, 0, 100))
	assert.Equal(t, want, model.Predict(in))
}

func TestScoreModel_PenaltyOnlyAdjustment(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))
	in := NewInputs(50, 1, 90)

	base := model.BaseScore(in)
	assert.InDelta(t, base*0.85, Adjust(base, in), 1e-9)
	assert.Equal(t, Round1(base*0.85), model.Predict(in))
}

func TestScoreModel_AdjustmentsCompound(t *testing.T) {
	in := NewInputs(50, 1, 30)

	assert.InDelta(t, 100*0.85*0.9, Adjust(100, in), 1e-9)
}

func TestScoreModel_PerturbationRange(t *testing.T) {
	in := NewInputs(75, 4, 65)
	base := NewScoreModel(FixedSource(0.5)).Predict(in)

	low := NewScoreModel(FixedSource(0)).Predict(in)
	high := NewScoreModel(FixedSource(0.999999)).Predict(in)

	assert.InDelta(t, base-2.5, low, 0.05)
	assert.InDelta(t, base+2.5, high, 0.05)
}

func TestScoreModel_AlwaysWithinBounds(t *testing.T) {
	src := &seqSource{values: []float64{0, 0.25, 0.5, 0.75, 0.999}}
	model := NewScoreModel(src)

	for _, att := range []float64{0, 30, 59, 61, 91, 100} {
		for _, hours := range []float64{0, 1, 3, 6, 12} {
			for _, past := range []float64{0, 39, 40, 100} {
				score := model.Predict(NewInputs(att, hours, past))
				require.GreaterOrEqual(t, score, 0.0)
				require.LessOrEqual(t, score, 100.0)
				assert.Equal(t, score, math.Round(score*10)/10)
			}
		}
	}
}

func TestScoreModel_ScoreFillsDerivedFields(t *testing.T) {
	model := NewScoreModel(FixedSource(0.5))
	rec := &Record{Name: "Ada", Inputs: Inputs{Attendance: 95, StudyHours: 6, PastScore: 90, Assignments: 80}}

	model.Score(rec)

	assert.Equal(t, ParticipationMedium, rec.Participation)
	assert.Equal(t, ActivitiesSome, rec.ExtraActivities)
	assert.Equal(t, RiskLow, rec.RiskLevel)
	assert.Equal(t, Classify(rec.PredictedScore), rec.RiskLevel)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 72.3, Round1(72.25))
	assert.Equal(t, 72.4, Round1(72.44))
	assert.Equal(t, 0.0, Round1(0.04))
}

func TestInputs_Finite(t *testing.T) {
	assert.True(t, NewInputs(1, 2, 3).Finite())
	assert.False(t, NewInputs(math.NaN(), 2, 3).Finite())
	assert.False(t, NewInputs(1, math.Inf(1), 3).Finite())
}
