// Package projection turns a roster snapshot into the dashboard view a
// session is allowed to see. Projections are pure: the same session and
// snapshot always give the same view.
package projection

import (
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// View is everything the dashboard renders for one session.
type View struct {
	Role     identity.RoleName `json:"role"`
	Welcome  string            `json:"welcome"`
	Subtitle string            `json:"subtitle,omitempty"`

	// Notification is set for teachers while any student is high risk.
	Notification *Notification `json:"notification,omitempty"`

	Controls Controls `json:"controls"`

	// Staff views.
	Table  *Table              `json:"table,omitempty"`
	Stats  *Stats              `json:"stats,omitempty"`
	Charts []Chart             `json:"charts,omitempty"`
	Board  *InterventionsBoard `json:"interventions,omitempty"`

	// Student view.
	Personal *PersonalView `json:"personal,omitempty"`
}

// Controls says which roster actions the client may offer.
type Controls struct {
	Add          bool `json:"add"`
	Delete       bool `json:"delete"`
	Import       bool `json:"import"`
	Export       bool `json:"export"`
	ShowRoster   bool `json:"showRoster"`
	ShowFaceScan bool `json:"showFaceScan"`
}

// Notification is a transient banner.
type Notification struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Staff view parts
// ─────────────────────────────────────────────────────────────────────────────

// Table is the filtered roster table.
type Table struct {
	Filter    TableFilter `json:"filter"`
	Rows      []Row       `json:"rows"`
	EmptyText string      `json:"emptyText,omitempty"`
}

// Row is one roster table row.
type Row struct {
	ID             string            `json:"id"`
	RollNo         string            `json:"rollNo"`
	Name           string            `json:"name"`
	Attendance     float64           `json:"attendance"`
	StudyHours     float64           `json:"studyHours"`
	PastScore      float64           `json:"pastScore"`
	PredictedScore float64           `json:"predictedScore"`
	RiskLevel      student.RiskLevel `json:"riskLevel"`
	RiskLabel      string            `json:"riskLabel"`
	Badge          string            `json:"badge"`
}

// Stats are the headline numbers.
type Stats struct {
	Total         int     `json:"total"`
	AverageScore  float64 `json:"averageScore"`
	HighRiskCount int     `json:"highRiskCount"`
	SuccessRate   float64 `json:"successRate"`
}

// Chart is a chart-library-neutral series description.
type Chart struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Labels   []string  `json:"labels,omitempty"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series. Scatter charts use Points instead of Data.
type Dataset struct {
	Label  string    `json:"label,omitempty"`
	Data   []float64 `json:"data,omitempty"`
	Points []Point   `json:"points,omitempty"`
}

// Point is a scatter point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InterventionsBoard groups students by risk tier.
type InterventionsBoard struct {
	High   BoardColumn `json:"high"`
	Medium BoardColumn `json:"medium"`
	Low    BoardColumn `json:"low"`
}

// BoardColumn is one risk tier on the board. Count is the full size of the
// tier even when Entries is truncated.
type BoardColumn struct {
	Count     int          `json:"count"`
	Entries   []BoardEntry `json:"entries"`
	More      string       `json:"more,omitempty"`
	EmptyText string       `json:"emptyText,omitempty"`
}

// BoardEntry is one student on the board.
type BoardEntry struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	RollNo         string  `json:"rollNo"`
	PredictedScore float64 `json:"predictedScore"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Student view parts
// ─────────────────────────────────────────────────────────────────────────────

// CardStatus is the tone of a summary card.
type CardStatus string

const (
	StatusPositive CardStatus = "positive"
	StatusNegative CardStatus = "negative"
	StatusWarning  CardStatus = "warning"
	StatusNeutral  CardStatus = "neutral"
)

// Card is a summary card.
type Card struct {
	Title    string     `json:"title"`
	Value    string     `json:"value"`
	Subtitle string     `json:"subtitle"`
	Status   CardStatus `json:"status"`
}

// PersonalView is the student's own dashboard.
type PersonalView struct {
	HasRecord bool `json:"hasRecord"`

	Cards []Card `json:"cards"`

	// Comparison and actions are only present with a matched record.
	Comparison *Chart `json:"comparison,omitempty"`

	ActionsTitle   string                 `json:"actionsTitle"`
	Actions        []student.Intervention `json:"actions,omitempty"`
	PredictorTitle string                 `json:"predictorTitle"`
}
