package projection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

func rec(id, name string, att, hours, score float64, risk student.RiskLevel) student.Record {
	return student.Record{
		ID:             id,
		Name:           name,
		Inputs:         student.NewInputs(att, hours, 50),
		PredictedScore: score,
		RiskLevel:      risk,
	}
}

func session(role identity.Role, name, email string) *identity.Session {
	return &identity.Session{ID: "s", UserID: "u", Name: name, Email: email, Role: role}
}

func sampleRoster() []student.Record {
	return []student.Record{
		rec("c", "Carol Low", 95, 5, 85, student.RiskLow),
		rec("a", "Alice High", 50, 1, 30, student.RiskHigh),
		rec("b", "Bob Medium", 70, 2, 50, student.RiskMedium),
	}
}

func TestProject_Admin(t *testing.T) {
	v, err := Project(session(identity.Admin{}, "Admin User", "admin@school.edu"), sampleRoster())
	require.NoError(t, err)

	assert.Equal(t, WelcomeAdmin, v.Welcome)
	assert.Nil(t, v.Notification)
	assert.Nil(t, v.Personal)
	assert.True(t, v.Controls.Add && v.Controls.Delete && v.Controls.Import && v.Controls.Export)

	require.Len(t, v.Table.Rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{v.Table.Rows[0].ID, v.Table.Rows[1].ID, v.Table.Rows[2].ID})
	assert.Equal(t, "HIGH", v.Table.Rows[0].RiskLabel)
	assert.Equal(t, "danger", v.Table.Rows[0].Badge)
	assert.Equal(t, "-", v.Table.Rows[0].RollNo)

	assert.Equal(t, &Stats{Total: 3, AverageScore: 55, HighRiskCount: 1, SuccessRate: 33.3}, v.Stats)
	assert.Len(t, v.Charts, 5)
}

func TestProject_TeacherNotification(t *testing.T) {
	v, err := Project(session(identity.Teacher{}, "Teacher User", "teacher@school.edu"), sampleRoster())
	require.NoError(t, err)

	assert.Equal(t, WelcomeTeacher, v.Welcome)
	assert.Equal(t, TeacherSubtitle, v.Subtitle)
	require.NotNil(t, v.Notification)
	assert.Equal(t, "⚠️ Attention: 1 students are at high risk!", v.Notification.Message)

	calm := []student.Record{rec("a", "A", 90, 4, 80, student.RiskLow)}
	v, err = Project(session(identity.Teacher{}, "Teacher User", "teacher@school.edu"), calm)
	require.NoError(t, err)
	assert.Nil(t, v.Notification)
}

func TestProject_StudentWithRecord(t *testing.T) {
	roster := sampleRoster()
	v, err := Project(session(identity.Student{}, "bob medium", "bob@school.edu"), roster)
	require.NoError(t, err)

	assert.Equal(t, "Welcome, bob!", v.Welcome)
	assert.Nil(t, v.Table)
	assert.Nil(t, v.Stats)
	assert.False(t, v.Controls.Add || v.Controls.Export || v.Controls.ShowRoster)
	assert.True(t, v.Controls.ShowFaceScan)

	p := v.Personal
	require.NotNil(t, p)
	assert.True(t, p.HasRecord)
	assert.Equal(t, []Card{
		{Title: "My Attendance", Value: "70%", Subtitle: "vs Class Avg", Status: StatusNegative},
		{Title: "Predicted Score", Value: "50%", Subtitle: "Your Goal: 90%", Status: StatusWarning},
		{Title: "My Risk Level", Value: "MEDIUM", Subtitle: "Status", Status: StatusWarning},
		{Title: "Study Hours", Value: "2h/day", Subtitle: "Recommended: 4h", Status: StatusWarning},
	}, p.Cards)

	require.NotNil(t, p.Comparison)
	assert.Equal(t, "Me vs Class Average", p.Comparison.Title)
	assert.Equal(t, []float64{70, 50, 20}, p.Comparison.Datasets[0].Data)
	// class averages: attendance 71.7, score 55, hours 2.7 (x10)
	assert.Equal(t, 71.7, p.Comparison.Datasets[1].Data[0])
	assert.Equal(t, 55.0, p.Comparison.Datasets[1].Data[1])
	assert.InDelta(t, 27.0, p.Comparison.Datasets[1].Data[2], 1e-9)

	assert.Equal(t, ActionsTitle, p.ActionsTitle)
	assert.NotEmpty(t, p.Actions)
}

func TestProject_StudentMatchedByEmail(t *testing.T) {
	roster := sampleRoster()
	roster[0].Email = "carol@school.edu"

	v, err := Project(session(identity.Student{}, "Someone Else", "carol@school.edu"), roster)
	require.NoError(t, err)
	assert.Equal(t, "85%", v.Personal.Cards[1].Value)
	assert.Equal(t, StatusPositive, v.Personal.Cards[0].Status)
}

func TestProject_StudentWithoutRecord(t *testing.T) {
	v, err := Project(session(identity.Student{}, "Student User", "student@school.edu"), sampleRoster())
	require.NoError(t, err)

	p := v.Personal
	assert.False(t, p.HasRecord)
	assert.Nil(t, p.Comparison)
	assert.Empty(t, p.Actions)
	for _, c := range p.Cards {
		assert.Equal(t, "-", c.Value)
		assert.Equal(t, StatusNeutral, c.Status)
	}
	assert.Equal(t, "Unknown", p.Cards[2].Subtitle)
	assert.Equal(t, "Risk Level", p.Cards[2].Title)
}

func TestProject_EmptyRoster(t *testing.T) {
	v, err := Project(session(identity.Admin{}, "Admin User", "admin@school.edu"), nil)
	require.NoError(t, err)

	assert.Equal(t, &Stats{}, v.Stats)
	assert.Equal(t, "No students found", v.Table.EmptyText)
	assert.Equal(t, "No high risk students.", v.Board.High.EmptyText)
	assert.Equal(t, []float64{0, 0, 0}, v.Charts[1].Datasets[0].Data)
}

func TestProject_NoSession(t *testing.T) {
	_, err := Project(nil, sampleRoster())
	assert.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestProject_DoesNotMutateSnapshot(t *testing.T) {
	roster := sampleRoster()
	_, err := Project(session(identity.Admin{}, "Admin User", "a@b.c"), roster)
	require.NoError(t, err)
	assert.Equal(t, "c", roster[0].ID)
}

func TestProject_SameSnapshotSameView(t *testing.T) {
	roster := sampleRoster()
	sessions := []*identity.Session{
		session(identity.Admin{}, "Admin User", "a@b.c"),
		session(identity.Teacher{}, "Teacher User", "t@b.c"),
		session(identity.Student{}, "Bob Medium", "bob@b.c"),
	}

	for _, sess := range sessions {
		first, err := Project(sess, roster)
		require.NoError(t, err)
		second, err := Project(sess, roster)
		require.NoError(t, err)
		assert.Equal(t, first, second, "role %s", sess.Role.Name())
	}
}

func TestBuildPersonal_AttendanceComparedBeforeRounding(t *testing.T) {
	me := rec("a", "Ada", 85, 3, 70, student.RiskMedium)
	roster := []student.Record{
		me,
		rec("b", "Ben", 85, 3, 70, student.RiskMedium),
		rec("c", "Cy", 85.12, 3, 70, student.RiskMedium),
	}

	pv := BuildPersonal(&me, roster)
	require.NotNil(t, pv.Comparison)

	// mean is 85.04, shown as 85 but still above the student's 85
	assert.Equal(t, 85.0, pv.Comparison.Datasets[1].Data[0])
	assert.Equal(t, StatusNegative, pv.Cards[0].Status)

	even := []student.Record{me, rec("b", "Ben", 85, 3, 70, student.RiskMedium)}
	assert.Equal(t, StatusNeutral, BuildPersonal(&me, even).Cards[0].Status)
}

func TestBuildTable_Filter(t *testing.T) {
	roster := sampleRoster()

	tests := []struct {
		name   string
		filter TableFilter
		want   []string
	}{
		{"all", TableFilter{}, []string{"c", "a", "b"}},
		{"risk", TableFilter{Risk: "high"}, []string{"a"}},
		{"search case-insensitive", TableFilter{Search: "BOB"}, []string{"b"}},
		{"both", TableFilter{Risk: "low", Search: "alice"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range BuildTable(roster, tt.filter).Rows {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Error(t, TableFilter{Risk: "extreme"}.Validate())
}

func TestBuildBoard_LowTruncated(t *testing.T) {
	var roster []student.Record
	for i := 0; i < 8; i++ {
		roster = append(roster, rec(fmt.Sprintf("id%d", i), "S", 90, 4, 85, student.RiskLow))
	}

	b := BuildBoard(roster)
	assert.Equal(t, 8, b.Low.Count)
	assert.Len(t, b.Low.Entries, 5)
	assert.Equal(t, "+3 more", b.Low.More)
	assert.Empty(t, b.High.Entries)
}

func TestBuildCharts_Histogram(t *testing.T) {
	roster := []student.Record{
		rec("1", "a", 0, 0, 39.9, student.RiskHigh),
		rec("2", "b", 0, 0, 40, student.RiskMedium),
		rec("3", "c", 0, 0, 60, student.RiskLow),
		rec("4", "d", 0, 0, 80, student.RiskLow),
		rec("5", "e", 0, 0, 100, student.RiskLow),
	}

	charts := BuildCharts(roster)
	assert.Equal(t, []float64{1, 1, 1, 2}, charts[2].Datasets[0].Data)
	assert.Equal(t, []float64{1, 1, 3}, charts[0].Datasets[0].Data)
	assert.Len(t, charts[3].Datasets[0].Points, 5)
}
