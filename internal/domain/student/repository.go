package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the roster store. Every implementation assigns ids and
// timestamps itself and notifies subscribers after each committed write.
type Repository interface {
	// Add stores a new record and returns the assigned id.
	Add(ctx context.Context, record *Record) (string, error)

	// Get returns a record by id.
	// Returns shared.ErrStudentNotFound if there is no such record.
	Get(ctx context.Context, id string) (*Record, error)

	// Update overwrites the whole record identified by record.ID.
	Update(ctx context.Context, record *Record) error

	// Patch updates only the fields set in the patch.
	Patch(ctx context.Context, id string, patch Patch) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// List returns the full roster. Order is not guaranteed.
	List(ctx context.Context) ([]Record, error)

	// Query returns records where field op value holds.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// Subscribe registers onChange for every committed write. The returned
	// function cancels the subscription and is safe to call more than once.
	Subscribe(ctx context.Context, onChange func(Change)) (func(), error)
}

// ChangeFeed is the subscribe half of Repository. Remote relays implement it
// without owning any records.
type ChangeFeed interface {
	Subscribe(ctx context.Context, onChange func(Change)) (func(), error)
}

// ChangeKind is the kind of write that produced a Change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"

	// ChangeFeedLost is sent once by a feed that stopped delivering on its
	// own. No further changes will arrive on that subscription.
	ChangeFeedLost ChangeKind = "feed_lost"
)

// Change notifies subscribers that a record changed. It carries no record
// data; consumers re-read the roster.
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id"`
}

// Patch holds optional field updates. Nil fields are left untouched.
type Patch struct {
	Attendance     *float64
	PredictedScore *float64
	RiskLevel      *RiskLevel
	Email          *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Attendance == nil && p.PredictedScore == nil && p.RiskLevel == nil && p.Email == nil
}

// Apply writes the set fields into r.
func (p Patch) Apply(r *Record) {
	if p.Attendance != nil {
		r.Attendance = *p.Attendance
	}
	if p.PredictedScore != nil {
		r.PredictedScore = *p.PredictedScore
	}
	if p.RiskLevel != nil {
		r.RiskLevel = *p.RiskLevel
	}
	if p.Email != nil {
		r.Email = *p.Email
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Query filters
// ─────────────────────────────────────────────────────────────────────────────

// Field names accepted by Query.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldRollNo         = "rollNo"
	FieldRiskLevel      = "riskLevel"
	FieldAttendance     = "attendance"
	FieldStudyHours     = "studyHours"
	FieldPastScore      = "pastScore"
	FieldPredictedScore = "predictedScore"
)

// Operator is a comparison used by Query.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Filter is a single field comparison.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// IsNumericField reports whether field holds a number.
func IsNumericField(field string) bool {
	switch field {
	case FieldAttendance, FieldStudyHours, FieldPastScore, FieldPredictedScore:
		return true
	}
	return false
}

// IsTextField reports whether field holds a string.
func IsTextField(field string) bool {
	switch field {
	case FieldName, FieldEmail, FieldRollNo, FieldRiskLevel:
		return true
	}
	return false
}

// IsValid reports whether op is a known operator.
func (op Operator) IsValid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Matches evaluates the filter against a record. Unknown fields never match.
func (f Filter) Matches(r *Record) bool {
	switch {
	case IsNumericField(f.Field):
		want, ok := toFloat(f.Value)
		if !ok {
			return false
		}
		return compareFloat(numericField(r, f.Field), f.Op, want)
	case IsTextField(f.Field):
		want, ok := f.Value.(string)
		if !ok {
			if rl, isRisk := f.Value.(RiskLevel); isRisk {
				want, ok = string(rl), true
			}
		}
		if !ok {
			return false
		}
		return compareString(textField(r, f.Field), f.Op, want)
	}
	return false
}

func numericField(r *Record, field string) float64 {
	switch field {
	case FieldAttendance:
		return r.Attendance
	case FieldStudyHours:
		return r.StudyHours
	case FieldPastScore:
		return r.PastScore
	default:
		return r.PredictedScore
	}
}

func textField(r *Record, field string) string {
	switch field {
	case FieldName:
		return r.Name
	case FieldEmail:
		return r.Email
	case FieldRollNo:
		return r.RollNo
	default:
		return string(r.RiskLevel)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func compareFloat(got float64, op Operator, want float64) bool {
	switch op {
	case OpEqual:
		return got == want
	case OpNotEqual:
		return got != want
	case OpLess:
		return got < want
	case OpLessEqual:
		return got <= want
	case OpGreater:
		return got > want
	case OpGreaterEqual:
		return got >= want
	}
	return false
}

func compareString(got string, op Operator, want string) bool {
	switch op {
	case OpEqual:
		return got == want
	case OpNotEqual:
		return got != want
	case OpLess:
		return got < want
	case OpLessEqual:
		return got <= want
	case OpGreater:
		return got > want
	case OpGreaterEqual:
		return got >= want
	}
	return false
}
