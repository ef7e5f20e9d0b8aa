package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_MatchesIdentity(t *testing.T) {
	withEmail := &Record{Name: "Ada Lovelace", Email: "ada@school.edu"}
	withoutEmail := &Record{Name: "Grace Hopper"}

	assert.True(t, withEmail.MatchesIdentity("ADA@school.edu", "someone else"))
	assert.True(t, withEmail.MatchesIdentity("other@school.edu", "ada lovelace"))
	assert.False(t, withEmail.MatchesIdentity("other@school.edu", "Ada"))
	assert.True(t, withoutEmail.MatchesIdentity("grace@school.edu", "GRACE HOPPER"))
	assert.False(t, withoutEmail.MatchesIdentity("", ""))
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Ada", FirstName("Ada Lovelace"))
	assert.Equal(t, "Ada", FirstName("  Ada  "))
	assert.Equal(t, "", FirstName(""))
}

func TestSortByID(t *testing.T) {
	roster := []Record{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortByID(roster)

	assert.Equal(t, "a", roster[0].ID)
	assert.Equal(t, "b", roster[1].ID)
	assert.Equal(t, "c", roster[2].ID)
}

func TestCloneAll_IsIndependent(t *testing.T) {
	roster := []Record{{ID: "a", Name: "Ada"}}
	copied := CloneAll(roster)
	copied[0].Name = "changed"

	assert.Equal(t, "Ada", roster[0].Name)
	assert.Nil(t, CloneAll(nil))
}

func TestPatch_Apply(t *testing.T) {
	rec := &Record{Inputs: Inputs{Attendance: 70}, PredictedScore: 50, RiskLevel: RiskMedium}
	att := 71.0
	patch := Patch{Attendance: &att}

	assert.False(t, patch.IsEmpty())
	patch.Apply(rec)

	assert.Equal(t, 71.0, rec.Attendance)
	assert.Equal(t, 50.0, rec.PredictedScore)
	assert.True(t, Patch{}.IsEmpty())
}

func TestFilter_Matches(t *testing.T) {
	rec := &Record{Name: "Ada", RiskLevel: RiskHigh, Inputs: Inputs{Attendance: 55}, PredictedScore: 35}

	assert.True(t, Filter{Field: FieldRiskLevel, Op: OpEqual, Value: "high"}.Matches(rec))
	assert.True(t, Filter{Field: FieldRiskLevel, Op: OpEqual, Value: RiskHigh}.Matches(rec))
	assert.True(t, Filter{Field: FieldAttendance, Op: OpLess, Value: 60}.Matches(rec))
	assert.False(t, Filter{Field: FieldPredictedScore, Op: OpGreaterEqual, Value: 40.0}.Matches(rec))
	assert.False(t, Filter{Field: "createdAt", Op: OpEqual, Value: "x"}.Matches(rec))
	assert.False(t, Filter{Field: FieldAttendance, Op: OpEqual, Value: "55"}.Matches(rec))
}
