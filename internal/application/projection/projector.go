package projection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECT
// ══════════════════════════════════════════════════════════════════════════════

// Dashboard texts.
const (
	WelcomeAdmin    = "Admin Dashboard"
	WelcomeTeacher  = "Teacher Dashboard"
	TeacherSubtitle = "Monitor class performance and interventions"

	ActionsTitle   = "My Recommended Actions"
	PredictorTitle = "My Performance Predictor"

	// boardLowLimit caps the low-risk column of the interventions board.
	boardLowLimit = 5
)

// Project builds the dashboard for sess from a full roster snapshot.
func Project(sess *identity.Session, snapshot []student.Record) (*View, error) {
	return ProjectFiltered(sess, snapshot, TableFilter{})
}

// ProjectFiltered is Project with a roster table filter. The filter only
// affects the table; stats, charts and the board always cover the whole
// roster.
func ProjectFiltered(sess *identity.Session, snapshot []student.Record, filter TableFilter) (*View, error) {
	if sess == nil {
		return nil, shared.ErrSessionExpired
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	roster := student.CloneAll(snapshot)
	student.SortByID(roster)

	view := identity.MatchRole(sess.Role, identity.RoleMatcher[*View]{
		Admin: func(identity.Admin) *View {
			return staffView(identity.RoleAdmin, WelcomeAdmin, "", roster, filter)
		},
		Teacher: func(identity.Teacher) *View {
			v := staffView(identity.RoleTeacher, WelcomeTeacher, TeacherSubtitle, roster, filter)
			if n := v.Stats.HighRiskCount; n > 0 {
				v.Notification = &Notification{Message: HighRiskAlertMessage(n), Level: "warning"}
			}
			return v
		},
		Student: func(identity.Student) *View {
			return studentView(sess, roster)
		},
	})
	return view, nil
}

// HighRiskAlertMessage is the teacher banner text for n high-risk students.
func HighRiskAlertMessage(n int) string {
	return fmt.Sprintf("⚠️ Attention: %d students are at high risk!", n)
}

func staffView(role identity.RoleName, welcome, subtitle string, roster []student.Record, filter TableFilter) *View {
	return &View{
		Role:     role,
		Welcome:  welcome,
		Subtitle: subtitle,
		Controls: Controls{
			Add:        true,
			Delete:     true,
			Import:     true,
			Export:     true,
			ShowRoster: true,
		},
		Table:  BuildTable(roster, filter),
		Stats:  ComputeStats(roster),
		Charts: BuildCharts(roster),
		Board:  BuildBoard(roster),
	}
}

func studentView(sess *identity.Session, roster []student.Record) *View {
	return &View{
		Role:     identity.RoleStudent,
		Welcome:  fmt.Sprintf("Welcome, %s!", sess.FirstName()),
		Controls: Controls{ShowFaceScan: true},
		Personal: BuildPersonal(sess.FindOwnRecord(roster), roster),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// ComputeStats returns the headline numbers. An empty roster gives zeros.
func ComputeStats(roster []student.Record) *Stats {
	s := &Stats{Total: len(roster)}
	if len(roster) == 0 {
		return s
	}

	passing := 0
	for i := range roster {
		if roster[i].RiskLevel == student.RiskHigh {
			s.HighRiskCount++
		}
		if roster[i].PredictedScore >= student.MediumRiskBelow {
			passing++
		}
	}
	s.AverageScore = student.Round1(averageOf(roster, scoreOf))
	s.SuccessRate = student.Round1(float64(passing) / float64(len(roster)) * 100)
	return s
}

func scoreOf(r *student.Record) float64      { return r.PredictedScore }
func attendanceOf(r *student.Record) float64 { return r.Attendance }
func hoursOf(r *student.Record) float64      { return r.StudyHours }

// averageOf returns the mean of field over records, or 0 for none.
func averageOf(records []student.Record, field func(*student.Record) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for i := range records {
		sum += field(&records[i])
	}
	return sum / float64(len(records))
}

func byRisk(roster []student.Record, level student.RiskLevel) []student.Record {
	out := make([]student.Record, 0, len(roster))
	for i := range roster {
		if roster[i].RiskLevel == level {
			out = append(out, roster[i])
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CHARTS
// ══════════════════════════════════════════════════════════════════════════════

var riskLabels = []string{"High Risk", "Medium Risk", "Low Risk"}

// Histogram bucket labels.
var scoreBuckets = []string{"0-40%", "40-60%", "60-80%", "80-100%"}

// BuildCharts returns the staff analytics charts in display order.
func BuildCharts(roster []student.Record) []Chart {
	tiers := make([][]student.Record, len(student.RiskLevels))
	for i, level := range student.RiskLevels {
		tiers[i] = byRisk(roster, level)
	}

	counts := make([]float64, len(tiers))
	avgScore := make([]float64, len(tiers))
	avgAtt := make([]float64, len(tiers))
	for i, tier := range tiers {
		counts[i] = float64(len(tier))
		avgScore[i] = student.Round1(averageOf(tier, scoreOf))
		avgAtt[i] = student.Round1(averageOf(tier, attendanceOf))
	}

	buckets := make([]float64, len(scoreBuckets))
	points := make([]Point, 0, len(roster))
	for i := range roster {
		buckets[bucketOf(roster[i].PredictedScore)]++
		points = append(points, Point{X: roster[i].StudyHours, Y: roster[i].PredictedScore})
	}

	return []Chart{
		{ID: "riskDistribution", Kind: "doughnut", Labels: riskLabels, Datasets: []Dataset{{Data: counts}}},
		{ID: "scoreByRisk", Kind: "bar", Labels: riskLabels, Datasets: []Dataset{{Label: "Average Score", Data: avgScore}}},
		{ID: "scoreDistribution", Kind: "bar", Labels: scoreBuckets, Datasets: []Dataset{{Label: "Number of Students", Data: buckets}}},
		{ID: "studyHours", Kind: "scatter", Datasets: []Dataset{{Label: "Study Hours vs Score", Points: points}}},
		{ID: "attendanceByRisk", Kind: "bar", Labels: riskLabels, Datasets: []Dataset{{Label: "Average Attendance %", Data: avgAtt}}},
	}
}

func bucketOf(score float64) int {
	switch {
	case score < 40:
		return 0
	case score < 60:
		return 1
	case score < 80:
		return 2
	}
	return 3
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERVENTIONS BOARD
// ══════════════════════════════════════════════════════════════════════════════

// BuildBoard groups the roster by risk tier. The low tier shows at most five
// students followed by a "+N more" line.
func BuildBoard(roster []student.Record) *InterventionsBoard {
	return &InterventionsBoard{
		High:   column(byRisk(roster, student.RiskHigh), 0, "No high risk students."),
		Medium: column(byRisk(roster, student.RiskMedium), 0, "No medium risk students."),
		Low:    column(byRisk(roster, student.RiskLow), boardLowLimit, "No low risk students."),
	}
}

func column(tier []student.Record, limit int, empty string) BoardColumn {
	col := BoardColumn{Count: len(tier), Entries: []BoardEntry{}}
	if len(tier) == 0 {
		col.EmptyText = empty
		return col
	}

	shown := tier
	if limit > 0 && len(tier) > limit {
		shown = tier[:limit]
		col.More = fmt.Sprintf("+%d more", len(tier)-limit)
	}
	for i := range shown {
		col.Entries = append(col.Entries, BoardEntry{
			ID:             shown[i].ID,
			Name:           shown[i].Name,
			RollNo:         rollNo(shown[i].RollNo),
			PredictedScore: shown[i].PredictedScore,
		})
	}
	return col
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONAL VIEW
// ══════════════════════════════════════════════════════════════════════════════

// Personal card goals.
const (
	goalScore      = 90.0
	recommendHours = 4.0
	hoursChartMul  = 10.0
)

// BuildPersonal builds the student's own cards, comparison chart and
// actions. A nil record gives the no-data placeholder.
func BuildPersonal(me *student.Record, roster []student.Record) *PersonalView {
	pv := &PersonalView{
		HasRecord:      me != nil,
		ActionsTitle:   ActionsTitle,
		PredictorTitle: PredictorTitle,
	}

	if me == nil {
		pv.Cards = []Card{
			{Title: "My Attendance", Value: "-", Subtitle: "No Data", Status: StatusNeutral},
			{Title: "Predicted Score", Value: "-", Subtitle: "No Data", Status: StatusNeutral},
			{Title: "Risk Level", Value: "-", Subtitle: "Unknown", Status: StatusNeutral},
			{Title: "Study Hours", Value: "-", Subtitle: "No Data", Status: StatusNeutral},
		}
		return pv
	}

	// compare against the unrounded mean; rounding is for display only
	rawAtt := averageOf(roster, attendanceOf)
	avgAtt := student.Round1(rawAtt)
	avgScore := student.Round1(averageOf(roster, scoreOf))
	avgHours := student.Round1(averageOf(roster, hoursOf))

	pv.Cards = []Card{
		{Title: "My Attendance", Value: formatNumber(me.Attendance) + "%", Subtitle: "vs Class Avg", Status: compare(me.Attendance, rawAtt)},
		{Title: "Predicted Score", Value: formatNumber(me.PredictedScore) + "%", Subtitle: "Your Goal: 90%", Status: scoreStatus(me.PredictedScore)},
		{Title: "My Risk Level", Value: strings.ToUpper(string(me.RiskLevel)), Subtitle: "Status", Status: riskStatus(me.RiskLevel)},
		{Title: "Study Hours", Value: formatNumber(me.StudyHours) + "h/day", Subtitle: "Recommended: 4h", Status: hoursStatus(me.StudyHours)},
	}

	pv.Comparison = &Chart{
		ID:     "meVsClass",
		Kind:   "bar",
		Title:  "Me vs Class Average",
		Labels: []string{"Attendance (%)", "Predicted Score (%)", "Study Hours (x10)"},
		Datasets: []Dataset{
			{Label: "Me", Data: []float64{me.Attendance, me.PredictedScore, me.StudyHours * hoursChartMul}},
			{Label: "Class Average", Data: []float64{avgAtt, avgScore, avgHours * hoursChartMul}},
		},
	}
	pv.Actions = student.DeriveInterventions(me)
	return pv
}

func compare(a, b float64) CardStatus {
	switch {
	case a > b:
		return StatusPositive
	case a < b:
		return StatusNegative
	}
	return StatusNeutral
}

func scoreStatus(score float64) CardStatus {
	if score > goalScore {
		return StatusPositive
	}
	return StatusWarning
}

func hoursStatus(hours float64) CardStatus {
	if hours >= recommendHours {
		return StatusPositive
	}
	return StatusWarning
}

func riskStatus(level student.RiskLevel) CardStatus {
	switch level {
	case student.RiskHigh:
		return StatusNegative
	case student.RiskMedium:
		return StatusWarning
	}
	return StatusPositive
}

// formatNumber prints v with no trailing zeros, so 85 is "85" and 85.5 is "85.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func rollNo(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
