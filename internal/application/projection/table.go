package projection

import (
	"strings"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// RiskFilterAll disables the risk filter.
const RiskFilterAll = "all"

// TableFilter narrows the roster table. Zero value shows everything.
type TableFilter struct {
	// Risk is "all", "high", "medium" or "low". Empty means all.
	Risk string `json:"risk"`

	// Search matches names case-insensitively by substring.
	Search string `json:"search"`
}

// Validate rejects unknown risk filters.
func (f TableFilter) Validate() error {
	if f.Risk == "" || f.Risk == RiskFilterAll {
		return nil
	}
	if !student.RiskLevel(f.Risk).IsValid() {
		return shared.NewDomainError("projection", "TableFilter", shared.ErrInvalidFormat, "unknown risk filter: "+f.Risk)
	}
	return nil
}

func (f TableFilter) matches(r *student.Record) bool {
	if f.Risk != "" && f.Risk != RiskFilterAll && string(r.RiskLevel) != f.Risk {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// BuildTable renders the filtered roster in the given order.
func BuildTable(roster []student.Record, filter TableFilter) *Table {
	t := &Table{Filter: filter, Rows: []Row{}}
	if t.Filter.Risk == "" {
		t.Filter.Risk = RiskFilterAll
	}

	for i := range roster {
		r := &roster[i]
		if !filter.matches(r) {
			continue
		}
		t.Rows = append(t.Rows, Row{
			ID:             r.ID,
			RollNo:         rollNo(r.RollNo),
			Name:           r.Name,
			Attendance:     r.Attendance,
			StudyHours:     r.StudyHours,
			PastScore:      r.PastScore,
			PredictedScore: r.PredictedScore,
			RiskLevel:      r.RiskLevel,
			RiskLabel:      strings.ToUpper(string(r.RiskLevel)),
			Badge:          badge(r.RiskLevel),
		})
	}

	if len(t.Rows) == 0 {
		t.EmptyText = "No students found"
	}
	return t
}

// FilterRecords returns the records that pass filter, keeping order.
func FilterRecords(roster []student.Record, filter TableFilter) []student.Record {
	out := make([]student.Record, 0, len(roster))
	for i := range roster {
		if filter.matches(&roster[i]) {
			out = append(out, roster[i])
		}
	}
	return out
}

func badge(level student.RiskLevel) string {
	switch level {
	case student.RiskHigh:
		return "danger"
	case student.RiskMedium:
		return "warning"
	}
	return "success"
}
