package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/student"
)

func studentSession(name string) *identity.Session {
	return &identity.Session{Name: name, Email: "x@school.edu", Role: identity.Student{}}
}

func record(att, hours, past, score float64, risk student.RiskLevel) []student.Record {
	return []student.Record{{
		ID:             "1",
		Name:           "Student User",
		Inputs:         student.NewInputs(att, hours, past),
		PredictedScore: score,
		RiskLevel:      risk,
	}}
}

func TestClassify_Order(t *testing.T) {
	tests := map[string]Intent{
		"What is my ATTENDANCE?":           IntentAttendance,
		"was I present":                    IntentAttendance,
		"my grades":                        IntentGrade,
		"score and risk":                   IntentGrade,
		"Am I at risk?":                    IntentRisk,
		"how to improve?":                  IntentImprove,
		"hey":                              IntentGreeting,
		"this":                             IntentGreeting,
		"Contact Teacher":                  IntentContact,
		"weather":                          IntentUnknown,
		"attendance help from the teacher": IntentAttendance,
	}
	for msg, want := range tests {
		assert.Equal(t, want, Classify(msg), msg)
	}
}

func TestRespond_Attendance(t *testing.T) {
	low := Respond(studentSession("Student User"), record(70, 3, 60, 55, student.RiskMedium), "attendance")
	assert.Equal(t, "Your attendance is 70%, which is below the recommended 75%. ⚠️ Try to attend more classes to improve your risk score.", low.Text)

	ok := Respond(studentSession("Student User"), record(75, 3, 60, 55, student.RiskMedium), "attendance")
	assert.Equal(t, "Your attendance is currently 75%. Great job keeping it high! ✅", ok.Text)
}

func TestRespond_Grade(t *testing.T) {
	r := Respond(studentSession("Student User"), record(90, 4, 72, 81.5, student.RiskLow), "my score")
	assert.Equal(t, "Your predicted score based on current performance is 81.5%. (Past Score: 72%)", r.Text)
}

func TestRespond_Risk(t *testing.T) {
	sess := studentSession("Student User")
	assert.Contains(t, Respond(sess, record(50, 1, 30, 30, student.RiskHigh), "risk").Text, "High Risk")
	assert.Contains(t, Respond(sess, record(50, 1, 30, 50, student.RiskMedium), "risk").Text, "Medium Risk")
	assert.Equal(t, "You are Low Risk (Safe Zone). Keep up the excellent work! ⭐", Respond(sess, record(90, 5, 80, 85, student.RiskLow), "safe").Text)
}

func TestRespond_Improve(t *testing.T) {
	sess := studentSession("Student User")
	assert.Contains(t, Respond(sess, record(90, 2, 80, 70, student.RiskLow), "improve").Text, "study hours")
	assert.Contains(t, Respond(sess, record(79, 3, 80, 70, student.RiskLow), "improve").Text, "attending every single class")
	assert.Contains(t, Respond(sess, record(80, 3, 80, 70, student.RiskLow), "improve").Text, "peer tutoring")
}

func TestRespond_GreetingContactDefault(t *testing.T) {
	sess := studentSession("student user")
	roster := record(80, 3, 80, 70, student.RiskLow)

	assert.Equal(t, "Hi Student! How can I help you succeed today?", Respond(sess, roster, "hello").Text)
	assert.Equal(t, ReplyContact, Respond(sess, roster, "contact").Text)
	assert.Equal(t, ReplyUnknown, Respond(sess, roster, "weather").Text)
}

func TestRespond_Deflections(t *testing.T) {
	roster := record(80, 3, 80, 70, student.RiskLow)

	teacher := &identity.Session{Name: "Student User", Role: identity.Teacher{}}
	assert.Equal(t, ReplyStaff, Respond(teacher, roster, "attendance").Text)

	assert.Equal(t, ReplyNoRecord, Respond(studentSession("Nobody"), roster, "attendance").Text)
}

func TestSuggestions(t *testing.T) {
	var labels []string
	for _, s := range Suggestions() {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"My Attendance", "Am I at risk?", "How to improve?", "My Grades", "Contact Teacher"}, labels)
}
