// Package command contains the write use cases. Each command carries its own
// input, validates it at the boundary and runs through a handler that owns its
// dependencies.
package command

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names so clients can map errors to their fields
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidationError lists the rejected fields of a command. It matches
// shared.ErrValidation with errors.Is.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

// Error implements error.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("%s: invalid input: %s", e.Op, strings.Join(parts, ", "))
}

// Is matches shared.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidation
}

// validateStruct runs the struct tags of v. Non-finite numbers fail range
// tags, so NaN and infinities never reach the score model.
func validateStruct(op string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%s: %w", op, err)
	}

	out := &ValidationError{Op: op, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email"
	case "eqfield":
		return "must match " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT INPUT
// ══════════════════════════════════════════════════════════════════════════════

// StudentInput is the user-supplied part of a roster record. Derived fields
// are never accepted from callers.
type StudentInput struct {
	RollNo          string                `json:"rollNo" validate:"max=32"`
	Name            string                `json:"name" validate:"required,max=120"`
	Email           string                `json:"email" validate:"omitempty,email"`
	Attendance      *float64              `json:"attendance" validate:"required,gte=0,lte=100"`
	StudyHours      *float64              `json:"studyHours" validate:"required,gte=0,lte=24"`
	PastScore       *float64              `json:"pastScore" validate:"required,gte=0,lte=100"`
	Participation   student.Participation `json:"participation" validate:"omitempty,oneof=low medium high"`
	Assignments     *float64              `json:"assignments" validate:"omitempty,gte=0,lte=100"`
	ExtraActivities student.Activities    `json:"extraActivities" validate:"omitempty,oneof=none some many"`
}

// normalize trims text fields.
func (in *StudentInput) normalize() {
	in.RollNo = strings.TrimSpace(in.RollNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
}

// Validate normalizes the input and checks its field rules.
func (in *StudentInput) Validate() error {
	in.normalize()
	return validateStruct("student_input", *in)
}

// Inputs converts to scoring inputs with defaults for omitted optional fields.
// Call it on validated input only; a missing required number reads as zero.
func (in StudentInput) Inputs() student.Inputs {
	out := student.NewInputs(valueOf(in.Attendance), valueOf(in.StudyHours), valueOf(in.PastScore))
	if in.Participation != "" {
		out.Participation = in.Participation
	}
	if in.Assignments != nil {
		out.Assignments = *in.Assignments
	}
	if in.ExtraActivities != "" {
		out.ExtraActivities = in.ExtraActivities
	}
	return out
}

// Num returns a pointer to v for filling StudentInput numbers.
func Num(v float64) *float64 { return &v }

func valueOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// buildRecord scores in and returns a record ready to store.
func buildRecord(model *student.ScoreModel, in StudentInput) *student.Record {
	inputs := in.Inputs()
	score, risk := model.Evaluate(inputs)
	return &student.Record{
		RollNo:         in.RollNo,
		Name:           in.Name,
		Email:          in.Email,
		Inputs:         inputs,
		PredictedScore: score,
		RiskLevel:      risk,
	}
}
