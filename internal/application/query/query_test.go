package query

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupredict/student-insight/internal/application/assistant"
	"github.com/edupredict/student-insight/internal/application/command"
	"github.com/edupredict/student-insight/internal/application/eventhandler"
	"github.com/edupredict/student-insight/internal/application/projection"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
	"github.com/edupredict/student-insight/internal/infrastructure/messaging"
	"github.com/edupredict/student-insight/internal/infrastructure/persistence/memory"
	"github.com/edupredict/student-insight/internal/infrastructure/rostercsv"
)

type staticRoster struct {
	records []student.Record
	status  messaging.SyncStatus
}

func (s *staticRoster) Snapshot() []student.Record       { return student.CloneAll(s.records) }
func (s *staticRoster) Status() messaging.SyncStatus     { return s.status }
func (s *staticRoster) Recent() []eventhandler.Alert     { return []eventhandler.Alert{{Count: 1, Message: "m"}} }
func (s *staticRoster) set(records ...student.Record)    { s.records = records }
func (s *staticRoster) with(status messaging.SyncStatus) { s.status = status }

var (
	admin   = &identity.Session{UserID: "a", Name: "Ada Admin", Email: "ada@school.edu", Role: identity.Admin{}}
	teacher = &identity.Session{UserID: "t", Name: "Tom Teacher", Email: "tom@school.edu", Role: identity.Teacher{}}
	bob     = &identity.Session{UserID: "b", Name: "Bob Stone", Email: "bob@school.edu", Role: identity.Student{}}
)

func record(name string, attendance, score float64, risk student.RiskLevel) student.Record {
	return student.Record{
		Name:           name,
		Inputs:         student.NewInputs(attendance, 3, 60),
		PredictedScore: score,
		RiskLevel:      risk,
	}
}

func seededStore(t *testing.T) *memory.RosterStore {
	t.Helper()
	repo := memory.NewRosterStore()
	for _, r := range []student.Record{
		record("Alice Park", 95, 88, student.RiskLow),
		record("Bob Stone", 60, 35, student.RiskHigh),
		record("Carl Diaz", 70, 55, student.RiskMedium),
	} {
		r := r
		_, err := repo.Add(context.Background(), &r)
		require.NoError(t, err)
	}
	return repo
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestDashboardHandler(t *testing.T) {
	src := &staticRoster{}
	src.with(messaging.StatusSynced)
	src.set(
		student.Record{ID: "1", Name: "Alice Park", PredictedScore: 88, RiskLevel: student.RiskLow},
		student.Record{ID: "2", Name: "Bob Stone", PredictedScore: 35, RiskLevel: student.RiskHigh},
	)
	h := NewDashboardHandler(src, src, nil)
	ctx := context.Background()

	t.Run("teacher gets alerts", func(t *testing.T) {
		dto, err := h.Handle(ctx, GetDashboardQuery{Actor: teacher})
		require.NoError(t, err)
		assert.Equal(t, messaging.StatusSynced, dto.SyncStatus)
		assert.Equal(t, 2, dto.Students)
		assert.Len(t, dto.Alerts, 1)
		require.NotNil(t, dto.View.Notification)
		assert.Equal(t, projection.HighRiskAlertMessage(1), dto.View.Notification.Message)
	})

	t.Run("admin has no alerts", func(t *testing.T) {
		dto, err := h.Handle(ctx, GetDashboardQuery{Actor: admin, Filter: projection.TableFilter{Risk: "high"}})
		require.NoError(t, err)
		assert.Empty(t, dto.Alerts)
		require.NotNil(t, dto.View.Table)
		require.Len(t, dto.View.Table.Rows, 1)
		assert.Equal(t, "Bob Stone", dto.View.Table.Rows[0].Name)
	})

	t.Run("student sees own record", func(t *testing.T) {
		dto, err := h.Handle(ctx, GetDashboardQuery{Actor: bob})
		require.NoError(t, err)
		assert.Nil(t, dto.View.Table)
		require.NotNil(t, dto.View.Personal)
		assert.True(t, dto.View.Personal.HasRecord)
	})

	t.Run("rejects", func(t *testing.T) {
		_, err := h.Handle(ctx, GetDashboardQuery{})
		assert.ErrorIs(t, err, shared.ErrSessionExpired)

		_, err = h.Handle(ctx, GetDashboardQuery{Actor: admin, Filter: projection.TableFilter{Risk: "extreme"}})
		assert.True(t, shared.IsValidation(err))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestStudentsHandler_List(t *testing.T) {
	ctx := context.Background()
	h := NewStudentsHandler(seededStore(t))

	all, err := h.List(ctx, ListStudentsQuery{Actor: teacher})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	for i := 1; i < len(all.Students); i++ {
		assert.Less(t, all.Students[i-1].ID, all.Students[i].ID)
	}

	searched, err := h.List(ctx, ListStudentsQuery{Actor: admin, Filter: projection.TableFilter{Search: "PARK"}})
	require.NoError(t, err)
	require.Len(t, searched.Students, 1)
	assert.Equal(t, "Alice Park", searched.Students[0].Name)

	below, err := h.List(ctx, ListStudentsQuery{Actor: admin, Field: student.FieldAttendance, Op: "<", Value: "75"})
	require.NoError(t, err)
	assert.Equal(t, 2, below.Total)

	high, err := h.List(ctx, ListStudentsQuery{Actor: admin, Field: student.FieldRiskLevel, Value: "high"})
	require.NoError(t, err)
	assert.Equal(t, 1, high.Total)

	none, err := h.List(ctx, ListStudentsQuery{Actor: admin, Filter: projection.TableFilter{Search: "zzz"}})
	require.NoError(t, err)
	assert.NotNil(t, none.Students)
	assert.Zero(t, none.Total)
}

func TestStudentsHandler_ListRejects(t *testing.T) {
	ctx := context.Background()
	h := NewStudentsHandler(seededStore(t))

	_, err := h.List(ctx, ListStudentsQuery{Actor: bob})
	assert.ErrorIs(t, err, shared.ErrRoleNotPermitted)

	_, err = h.List(ctx, ListStudentsQuery{Actor: admin, Field: "password"})
	assert.ErrorIs(t, err, shared.ErrUnsupportedQuery)

	_, err = h.List(ctx, ListStudentsQuery{Actor: admin, Field: student.FieldAttendance, Op: "~", Value: "1"})
	assert.ErrorIs(t, err, shared.ErrUnsupportedQuery)

	_, err = h.List(ctx, ListStudentsQuery{Actor: admin, Field: student.FieldAttendance, Value: "lots"})
	assert.ErrorIs(t, err, shared.ErrUnsupportedQuery)
}

func TestStudentsHandler_Get(t *testing.T) {
	ctx := context.Background()
	repo := seededStore(t)
	h := NewStudentsHandler(repo)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	ids := map[string]string{}
	for _, r := range all {
		ids[r.Name] = r.ID
	}

	own, err := h.Get(ctx, GetStudentQuery{Actor: bob, ID: ids["Bob Stone"]})
	require.NoError(t, err)
	assert.Equal(t, "Bob Stone", own.Record.Name)
	assert.NotEmpty(t, own.Interventions)

	_, err = h.Get(ctx, GetStudentQuery{Actor: bob, ID: ids["Alice Park"]})
	assert.ErrorIs(t, err, shared.ErrRoleNotPermitted)

	other, err := h.Get(ctx, GetStudentQuery{Actor: teacher, ID: ids["Alice Park"]})
	require.NoError(t, err)
	assert.Equal(t, student.RiskLow, other.Record.RiskLevel)

	_, err = h.Get(ctx, GetStudentQuery{Actor: teacher, ID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDICTION, EXPORT, ASSISTANT
// ══════════════════════════════════════════════════════════════════════════════

func TestPredictionHandler(t *testing.T) {
	h := NewPredictionHandler(student.NewScoreModel(student.FixedSource(0.5)))
	ctx := context.Background()

	dto, err := h.Handle(ctx, PredictPreviewQuery{
		Actor: bob,
		Input: command.StudentInput{Attendance: command.Num(40), StudyHours: command.Num(1), PastScore: command.Num(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, student.Classify(dto.PredictedScore), dto.RiskLevel)
	assert.Equal(t, student.ParticipationMedium, dto.Input.Participation)
	assert.NotEmpty(t, dto.Interventions)

	_, err = h.Handle(ctx, PredictPreviewQuery{Actor: bob, Input: command.StudentInput{Attendance: command.Num(101)}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, PredictPreviewQuery{Input: command.StudentInput{}})
	assert.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestExportHandler(t *testing.T) {
	ctx := context.Background()
	h := NewExportHandler(seededStore(t))

	dto, err := h.Handle(ctx, ExportRosterQuery{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, rostercsv.Filename, dto.Filename)

	lines := strings.Split(string(dto.Data), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, rostercsv.Header, lines[0])
	assert.False(t, strings.HasSuffix(string(dto.Data), "\n"))

	_, err = h.Handle(ctx, ExportRosterQuery{Actor: bob})
	assert.ErrorIs(t, err, shared.ErrRoleNotPermitted)
}

func TestAssistantHandler(t *testing.T) {
	src := &staticRoster{}
	src.set(record("Bob Stone", 62, 35, student.RiskHigh))
	h := NewAssistantHandler(src)
	ctx := context.Background()

	reply, err := h.Ask(ctx, AskAssistantQuery{Actor: bob, Message: "  what is my attendance? "})
	require.NoError(t, err)
	assert.Equal(t, assistant.IntentAttendance, reply.Intent)
	assert.Contains(t, reply.Text, "62")

	reply, err = h.Ask(ctx, AskAssistantQuery{Actor: teacher, Message: "risk"})
	require.NoError(t, err)
	assert.Equal(t, assistant.ReplyStaff, reply.Text)

	_, err = h.Ask(ctx, AskAssistantQuery{Actor: bob, Message: "   "})
	assert.True(t, shared.IsValidation(err))

	assert.Len(t, h.Suggestions(), 5)
}

func TestDashboardDTO_RenderedAt(t *testing.T) {
	src := &staticRoster{}
	h := NewDashboardHandler(src, nil, nil)

	before := time.Now()
	dto, err := h.Handle(context.Background(), GetDashboardQuery{Actor: teacher})
	require.NoError(t, err)
	assert.False(t, dto.RenderedAt.Before(before))
	assert.Empty(t, dto.Alerts)
	assert.Nil(t, dto.View.Notification)
}
