package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/edupredict/student-insight/internal/application/projection"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// Staff-only roster listing with the table filter and an optional single
// field comparison pushed down to the store.
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery lists roster records.
type ListStudentsQuery struct {
	Actor  *identity.Session
	Filter projection.TableFilter

	// Field, Op and Value form an optional store-side comparison such as
	// attendance < 75. Value is parsed as a number for numeric fields.
	Field string
	Op    string
	Value string
}

// Validate validates the query.
func (q *ListStudentsQuery) Validate() error {
	if err := q.Actor.Require(identity.CanViewRoster); err != nil {
		return err
	}
	return q.Filter.Validate()
}

func (q *ListStudentsQuery) storeFilter() (*student.Filter, error) {
	if q.Field == "" {
		return nil, nil
	}

	f := &student.Filter{Field: q.Field, Op: student.Operator(q.Op)}
	if q.Op == "" {
		f.Op = student.OpEqual
	}
	if !f.Op.IsValid() {
		return nil, shared.ErrUnsupportedQuery
	}

	switch {
	case student.IsNumericField(q.Field):
		v, err := strconv.ParseFloat(strings.TrimSpace(q.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", shared.ErrUnsupportedQuery, q.Value)
		}
		f.Value = v
	case student.IsTextField(q.Field):
		f.Value = q.Value
	default:
		return nil, shared.ErrUnsupportedQuery
	}
	return f, nil
}

// StudentListDTO is a page of roster records ordered by id.
type StudentListDTO struct {
	Students []student.Record `json:"students"`
	Total    int              `json:"total"`
}

// StudentsHandler serves roster reads straight from the store.
type StudentsHandler struct {
	repo student.Repository
}

// NewStudentsHandler creates a new StudentsHandler.
func NewStudentsHandler(repo student.Repository) *StudentsHandler {
	return &StudentsHandler{repo: repo}
}

// List executes ListStudentsQuery.
func (h *StudentsHandler) List(ctx context.Context, q ListStudentsQuery) (*StudentListDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := q.storeFilter()
	if err != nil {
		return nil, err
	}

	var records []student.Record
	if filter != nil {
		records, err = h.repo.Query(ctx, *filter)
	} else {
		records, err = h.repo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}

	student.SortByID(records)
	records = projection.FilterRecords(records, q.Filter)
	if records == nil {
		records = []student.Record{}
	}
	return &StudentListDTO{Students: records, Total: len(records)}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery fetches one record. Students may only fetch their own.
type GetStudentQuery struct {
	Actor *identity.Session
	ID    string
}

// StudentDetailDTO is a record with its recommended interventions.
type StudentDetailDTO struct {
	Record        *student.Record        `json:"record"`
	Interventions []student.Intervention `json:"interventions"`
}

// Get executes GetStudentQuery.
func (h *StudentsHandler) Get(ctx context.Context, q GetStudentQuery) (*StudentDetailDTO, error) {
	if q.Actor == nil {
		return nil, shared.ErrSessionExpired
	}
	if q.ID == "" {
		return nil, shared.ErrInvalidStudentID
	}

	rec, err := h.repo.Get(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("get_student: %w", err)
	}

	if !identity.CanViewRoster(q.Actor.Role) && !rec.MatchesIdentity(q.Actor.Email, q.Actor.Name) {
		return nil, shared.ErrRoleNotPermitted
	}
	return &StudentDetailDTO{Record: rec, Interventions: student.DeriveInterventions(rec)}, nil
}
