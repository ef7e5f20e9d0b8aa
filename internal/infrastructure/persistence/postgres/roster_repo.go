package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RosterRepository implements student.Repository for PostgreSQL. Change
// notifications come from the students trigger through LISTEN/NOTIFY, so
// writes made by other processes reach subscribers too.
type RosterRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewRosterRepository creates a new RosterRepository.
func NewRosterRepository(conn *Connection, logger *slog.Logger) *RosterRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RosterRepository{conn: conn, logger: logger.With("component", "roster_repo")}
}

const studentColumns = `id, roll_no, name, email, attendance, study_hours, past_score,
	participation, assignments, extra_activities, predicted_score, risk_level,
	created_at, updated_at`

// columnByField maps Filter fields onto whitelisted columns.
var columnByField = map[string]string{
	student.FieldName:           "name",
	student.FieldEmail:          "email",
	student.FieldRollNo:         "roll_no",
	student.FieldRiskLevel:      "risk_level",
	student.FieldAttendance:     "attendance",
	student.FieldStudyHours:     "study_hours",
	student.FieldPastScore:      "past_score",
	student.FieldPredictedScore: "predicted_score",
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Add implements student.Repository.
func (r *RosterRepository) Add(ctx context.Context, rec *student.Record) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO students (
			id, roll_no, name, email, attendance, study_hours, past_score,
			participation, assignments, extra_activities, predicted_score, risk_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.conn.Exec(ctx, query,
		id,
		rec.RollNo,
		rec.Name,
		rec.Email,
		rec.Attendance,
		rec.StudyHours,
		rec.PastScore,
		string(rec.Participation),
		rec.Assignments,
		string(rec.ExtraActivities),
		rec.PredictedScore,
		string(rec.RiskLevel),
	)
	if err != nil {
		return "", fmt.Errorf("add student: %w", err)
	}

	return id, nil
}

// Get implements student.Repository.
func (r *RosterRepository) Get(ctx context.Context, id string) (*student.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrStudentNotFound
	}

	row := r.conn.QueryRow(ctx, "SELECT "+studentColumns+" FROM students WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return rec, nil
}

// Update implements student.Repository.
func (r *RosterRepository) Update(ctx context.Context, rec *student.Record) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return shared.ErrStudentNotFound
	}

	query := `
		UPDATE students SET
			roll_no = $1,
			name = $2,
			email = $3,
			attendance = $4,
			study_hours = $5,
			past_score = $6,
			participation = $7,
			assignments = $8,
			extra_activities = $9,
			predicted_score = $10,
			risk_level = $11,
			updated_at = NOW()
		WHERE id = $12
	`

	tag, err := r.conn.Exec(ctx, query,
		rec.RollNo,
		rec.Name,
		rec.Email,
		rec.Attendance,
		rec.StudyHours,
		rec.PastScore,
		string(rec.Participation),
		rec.Assignments,
		string(rec.ExtraActivities),
		rec.PredictedScore,
		string(rec.RiskLevel),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Patch implements student.Repository.
func (r *RosterRepository) Patch(ctx context.Context, id string, patch student.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrStudentNotFound
	}

	query, args := buildPatch(id, patch)
	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Delete implements student.Repository.
func (r *RosterRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrStudentNotFound
	}

	tag, err := r.conn.Exec(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// List implements student.Repository.
func (r *RosterRepository) List(ctx context.Context) ([]student.Record, error) {
	rows, err := r.conn.Query(ctx, "SELECT "+studentColumns+" FROM students")
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return scanRecords(rows)
}

// Query implements student.Repository.
func (r *RosterRepository) Query(ctx context.Context, filter student.Filter) ([]student.Record, error) {
	where, arg, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, "SELECT "+studentColumns+" FROM students WHERE "+where, arg)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	return scanRecords(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Change feed
// ─────────────────────────────────────────────────────────────────────────────

// Subscribe implements student.Repository using LISTEN on RosterChannel. The
// listener runs until the returned cancel function is called or ctx ends.
func (r *RosterRepository) Subscribe(ctx context.Context, onChange func(student.Change)) (func(), error) {
	if err := r.conn.Ping(ctx); err != nil {
		return nil, shared.WrapError("roster", "Subscribe", shared.ErrServiceUnavailable, "database unreachable", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)

	go func() {
		err := r.conn.Listen(listenCtx, RosterChannel, func(payload string) {
			change, err := decodeChange(payload)
			if err != nil {
				r.logger.Warn("malformed roster notification", "payload", payload, "error", err)
				return
			}
			onChange(change)
		})
		r.listenerStopped(listenCtx, err, onChange)
	}()

	return cancel, nil
}

// listenerStopped reports a listener that ended while its subscription was
// still wanted. Cancellation by the subscriber is silent.
func (r *RosterRepository) listenerStopped(ctx context.Context, err error, onChange func(student.Change)) {
	if ctx.Err() != nil {
		return
	}
	r.logger.Error("roster listener stopped", "error", err)
	onChange(student.Change{Kind: student.ChangeFeedLost})
}

func decodeChange(payload string) (student.Change, error) {
	var change student.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return student.Change{}, err
	}
	switch change.Kind {
	case student.ChangeAdded, student.ChangeModified, student.ChangeRemoved:
		return change, nil
	}
	return student.Change{}, fmt.Errorf("unknown change kind %q", change.Kind)
}

// ─────────────────────────────────────────────────────────────────────────────
// Query building
// ─────────────────────────────────────────────────────────────────────────────

func buildWhere(filter student.Filter) (string, any, error) {
	column, ok := columnByField[filter.Field]
	if !ok || !filter.Op.IsValid() {
		return "", nil, shared.ErrUnsupportedQuery
	}

	op := string(filter.Op)
	if filter.Op == student.OpEqual {
		op = "="
	} else if filter.Op == student.OpNotEqual {
		op = "<>"
	}

	value := filter.Value
	if rl, isRisk := value.(student.RiskLevel); isRisk {
		value = string(rl)
	}

	switch value.(type) {
	case string:
		if student.IsNumericField(filter.Field) {
			return "", nil, shared.ErrUnsupportedQuery
		}
	case float64, float32, int, int64:
		if student.IsTextField(filter.Field) {
			return "", nil, shared.ErrUnsupportedQuery
		}
	default:
		return "", nil, shared.ErrUnsupportedQuery
	}

	return fmt.Sprintf("%s %s $1", column, op), value, nil
}

func buildPatch(id string, patch student.Patch) (string, []any) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Attendance != nil {
		add("attendance", *patch.Attendance)
	}
	if patch.PredictedScore != nil {
		add("predicted_score", *patch.PredictedScore)
	}
	if patch.RiskLevel != nil {
		add("risk_level", string(*patch.RiskLevel))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}

	args = append(args, id)
	query := "UPDATE students SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d", len(args))
	return query, args
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (*student.Record, error) {
	var (
		rec                       student.Record
		participation, activities string
		risk                      string
		createdAt, updatedAt      time.Time
	)

	err := row.Scan(
		&rec.ID,
		&rec.RollNo,
		&rec.Name,
		&rec.Email,
		&rec.Attendance,
		&rec.StudyHours,
		&rec.PastScore,
		&participation,
		&rec.Assignments,
		&activities,
		&rec.PredictedScore,
		&risk,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Participation = student.Participation(participation)
	rec.ExtraActivities = student.Activities(activities)
	rec.RiskLevel = student.RiskLevel(risk)
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return &rec, nil
}

func scanRecords(rows pgx.Rows) ([]student.Record, error) {
	defer rows.Close()

	out := make([]student.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
