// Package assistant answers students' questions about their own record with
// keyword-matched canned replies.
package assistant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// Intent is a recognised question topic.
type Intent string

const (
	IntentAttendance Intent = "attendance"
	IntentGrade      Intent = "grade"
	IntentRisk       Intent = "risk"
	IntentImprove    Intent = "improve"
	IntentGreeting   Intent = "greeting"
	IntentContact    Intent = "contact"
	IntentUnknown    Intent = "unknown"
)

// intents are checked in order; the first keyword hit wins.
var intents = []struct {
	intent   Intent
	keywords []string
}{
	{IntentAttendance, []string{"attendance", "present"}},
	{IntentGrade, []string{"grade", "score", "mark"}},
	{IntentRisk, []string{"risk", "safe", "danger"}},
	{IntentImprove, []string{"improve", "better", "help"}},
	{IntentGreeting, []string{"hello", "hi", "hey"}},
	{IntentContact, []string{"contact", "teacher"}},
}

// Fixed replies.
const (
	ReplyStaff    = "As a teacher/admin, you can view student details in the dashboard lists directly."
	ReplyNoRecord = "I couldn't access your student records. Please ensure you are logged in correctly."
	ReplyContact  = "You can email your class coordinator at teacher@school.edu or visit the Staff Room during break hours."
	ReplyUnknown  = "I'm not sure about that. Try asking about your 'attendance', 'risk level', or 'predicted score'."
)

// Reply is an assistant answer.
type Reply struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

// Classify returns the intent of a message. Matching is by lower-cased
// substring, so "this" counts as a greeting.
func Classify(message string) Intent {
	lower := strings.ToLower(message)
	for _, in := range intents {
		for _, kw := range in.keywords {
			if strings.Contains(lower, kw) {
				return in.intent
			}
		}
	}
	return IntentUnknown
}

// Respond answers message for sess. Staff get a deflection; students
// without a roster record get the no-record message.
func Respond(sess *identity.Session, roster []student.Record, message string) Reply {
	intent := Classify(message)

	if sess == nil || !sess.IsStudent() {
		return Reply{Intent: intent, Text: ReplyStaff}
	}

	me := sess.FindOwnRecord(roster)
	if me == nil {
		return Reply{Intent: intent, Text: ReplyNoRecord}
	}
	return Reply{Intent: intent, Text: answer(intent, me)}
}

func answer(intent Intent, me *student.Record) string {
	switch intent {
	case IntentAttendance:
		if me.Attendance < 75 {
			return fmt.Sprintf("Your attendance is %s%%, which is below the recommended 75%%. ⚠️ Try to attend more classes to improve your risk score.", num(me.Attendance))
		}
		return fmt.Sprintf("Your attendance is currently %s%%. Great job keeping it high! ✅", num(me.Attendance))

	case IntentGrade:
		return fmt.Sprintf("Your predicted score based on current performance is %s%%. (Past Score: %s%%)", num(me.PredictedScore), num(me.PastScore))

	case IntentRisk:
		switch me.RiskLevel {
		case student.RiskHigh:
			return "You are currently flagged as High Risk. 🚨 We recommend scheduling a meeting with your mentor immediately."
		case student.RiskMedium:
			return "You are at Medium Risk. Increasing your study hours slightly could push you to the safe zone."
		}
		return "You are Low Risk (Safe Zone). Keep up the excellent work! ⭐"

	case IntentImprove:
		if me.StudyHours < 3 {
			return "Analysis suggests increasing your study hours to at least 3-4 hours/day would have the biggest impact."
		}
		if me.Attendance < 80 {
			return "Focus on attending every single class for the next 2 weeks. Attendance is a key factor in your score."
		}
		return "Keep participating in class and maintaining your assignment streaks. Consider peer tutoring if you want to push for 90%+."

	case IntentGreeting:
		return fmt.Sprintf("Hi %s! How can I help you succeed today?", me.FirstName())

	case IntentContact:
		return ReplyContact
	}
	return ReplyUnknown
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Suggestion is a quick-reply chip.
type Suggestion struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Suggestions returns the quick-reply chips in display order.
func Suggestions() []Suggestion {
	return []Suggestion{
		{Label: "My Attendance", Message: "My Attendance"},
		{Label: "Am I at risk?", Message: "Am I at risk?"},
		{Label: "How to improve?", Message: "How to improve?"},
		{Label: "My Grades", Message: "My Grades"},
		{Label: "Contact Teacher", Message: "Contact Teacher"},
	}
}
