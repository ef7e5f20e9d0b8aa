package rostercsv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

func TestExport(t *testing.T) {
	records := []student.Record{
		{RollNo: "R1", Name: "Ada Lovelace", Inputs: student.NewInputs(92.5, 5, 88), PredictedScore: 91.3, RiskLevel: student.RiskLow},
		{Name: "No Roll", Inputs: student.NewInputs(40, 1, 30), PredictedScore: 28, RiskLevel: student.RiskHigh},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, records))

	want := Header + "\n" +
		"R1,Ada Lovelace,92.5,5,88,91.3,low\n" +
		",No Roll,40,1,30,28,high"
	assert.Equal(t, want, buf.String())
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, nil))
	assert.Equal(t, Header, buf.String())
}

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"anything goes here",
		"R1, Ada ,90,4,80",
		"",
		"   ",
		"R2,,90,4,80",
		"R3,Bob,,4,80",
		"R4,Carl,abc,4,80",
		"R5,Dee,70,2,50,99.9,low",
		"R6,Eve,70\r",
	}, "\n")

	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, Row{Line: 2, RollNo: "R1", Name: "Ada", Attendance: 90, StudyHours: 4, PastScore: 80}, res.Rows[0])
	assert.Equal(t, "Dee", res.Rows[1].Name)

	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 7, res.Errors[0].Line)
	assert.ErrorIs(t, res.Errors[0], shared.ErrInvalidFormat)
	assert.Equal(t, 9, res.Errors[1].Line)
	assert.ErrorIs(t, res.Errors[1], shared.ErrEmptyValue)
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, shared.ErrEmptyImport)
}

func TestParse_HeaderOnly(t *testing.T) {
	res, err := Parse(strings.NewReader(Header + "\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRoundTrip(t *testing.T) {
	model := student.NewScoreModel(student.FixedSource(0.5))
	in := student.NewInputs(85, 3, 75)
	score, risk := model.Evaluate(in)
	records := []student.Record{{RollNo: "7", Name: "Grace Hopper", Inputs: in, PredictedScore: score, RiskLevel: risk}}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, records))

	res, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "7", row.RollNo)
	assert.Equal(t, "Grace Hopper", row.Name)
	assert.Equal(t, in, row.Inputs())

	again, _ := model.Evaluate(row.Inputs())
	assert.Equal(t, score, again)
}
