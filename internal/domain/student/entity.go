package student

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Participation is the in-class participation tier.
type Participation string

const (
	ParticipationLow    Participation = "low"
	ParticipationMedium Participation = "medium"
	ParticipationHigh   Participation = "high"
)

// IsValid reports whether p is one of the known tiers.
func (p Participation) IsValid() bool {
	switch p {
	case ParticipationLow, ParticipationMedium, ParticipationHigh:
		return true
	}
	return false
}

// Activities is the extra-curricular activity tier.
type Activities string

const (
	ActivitiesNone Activities = "none"
	ActivitiesSome Activities = "some"
	ActivitiesMany Activities = "many"
)

// IsValid reports whether a is one of the known tiers.
func (a Activities) IsValid() bool {
	switch a {
	case ActivitiesNone, ActivitiesSome, ActivitiesMany:
		return true
	}
	return false
}

// RiskLevel is the risk tier derived from a predicted score.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// IsValid reports whether r is one of the known tiers.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// RiskLevels lists the tiers in display order.
var RiskLevels = []RiskLevel{RiskHigh, RiskMedium, RiskLow}

// ══════════════════════════════════════════════════════════════════════════════
// INPUTS
// ══════════════════════════════════════════════════════════════════════════════

// Default values for the optional scoring inputs.
const (
	DefaultParticipation = ParticipationMedium
	DefaultAssignments   = 80.0
	DefaultActivities    = ActivitiesSome
)

// Inputs are the raw attributes the score model consumes.
type Inputs struct {
	Attendance      float64       `json:"attendance"`
	StudyHours      float64       `json:"studyHours"`
	PastScore       float64       `json:"pastScore"`
	Participation   Participation `json:"participation"`
	Assignments     float64       `json:"assignments"`
	ExtraActivities Activities    `json:"extraActivities"`
}

// NewInputs builds Inputs with the optional attributes set to their defaults.
func NewInputs(attendance, studyHours, pastScore float64) Inputs {
	return Inputs{
		Attendance:      attendance,
		StudyHours:      studyHours,
		PastScore:       pastScore,
		Participation:   DefaultParticipation,
		Assignments:     DefaultAssignments,
		ExtraActivities: DefaultActivities,
	}
}

// WithDefaults fills empty optional fields. A zero Assignments value is kept,
// since zero is a legitimate percentage.
func (in Inputs) WithDefaults() Inputs {
	if in.Participation == "" {
		in.Participation = DefaultParticipation
	}
	if in.ExtraActivities == "" {
		in.ExtraActivities = DefaultActivities
	}
	return in
}

// Finite reports whether every numeric input is a real number.
func (in Inputs) Finite() bool {
	for _, v := range []float64{in.Attendance, in.StudyHours, in.PastScore, in.Assignments} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is a roster entry. PredictedScore and RiskLevel are derived from the
// inputs at write time and never edited on their own.
type Record struct {
	ID     string `json:"id"`
	RollNo string `json:"rollNo"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`

	Inputs

	PredictedScore float64   `json:"predictedScore"`
	RiskLevel      RiskLevel `json:"riskLevel"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// FirstName returns the first whitespace-separated word of the name.
func (r *Record) FirstName() string {
	return FirstName(r.Name)
}

// MatchesIdentity reports whether the record belongs to a user with the given
// email and name. Email wins when the record carries one; otherwise the name
// is compared case-insensitively.
func (r *Record) MatchesIdentity(email, name string) bool {
	if r.Email != "" && email != "" && strings.EqualFold(r.Email, email) {
		return true
	}
	return r.Name != "" && strings.EqualFold(r.Name, name)
}

// FirstName returns the first whitespace-separated word of a display name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SortByID orders records ascending by id in place.
func SortByID(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}

// CloneAll returns a deep copy of a roster slice.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
