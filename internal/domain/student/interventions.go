package student

// Priority ranks an intervention.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Intervention is a recommended action for a student.
type Intervention struct {
	Priority    Priority `json:"priority"`
	Action      string   `json:"action"`
	Description string   `json:"description"`
}

// Severity maps the priority onto the alert tone a client should use.
func (i Intervention) Severity() string {
	switch i.Priority {
	case PriorityCritical, PriorityHigh:
		return "danger"
	case PriorityMedium:
		return "warning"
	default:
		return "success"
	}
}

var (
	interventionCounseling = Intervention{PriorityCritical, "Immediate Counseling", "Schedule one-on-one session"}
	interventionTutoring   = Intervention{PriorityHigh, "Peer Tutoring", "Assign peer tutor"}
	interventionAttendance = Intervention{PriorityHigh, "Attendance Monitoring", "Daily attendance tracking"}
	interventionStudy      = Intervention{PriorityMedium, "Study Skills", "Time management workshop"}
	interventionExtra      = Intervention{PriorityMedium, "Extra Classes", "Support classes"}
	interventionAdvanced   = Intervention{PriorityLow, "Advanced Challenges", "Advanced materials"}
)

// DeriveInterventions evaluates the intervention rules in order against an
// already scored record. Rules are not exclusive, so a record can collect
// several actions.
func DeriveInterventions(r *Record) []Intervention {
	out := make([]Intervention, 0, 4)

	if r.RiskLevel == RiskHigh {
		out = append(out, interventionCounseling, interventionTutoring)
	}
	if r.Attendance < 70 {
		out = append(out, interventionAttendance)
	}
	if r.StudyHours < 2 {
		out = append(out, interventionStudy)
	}
	if r.RiskLevel == RiskMedium {
		out = append(out, interventionExtra)
	}
	if r.RiskLevel == RiskLow && r.PredictedScore > 80 {
		out = append(out, interventionAdvanced)
	}

	return out
}
