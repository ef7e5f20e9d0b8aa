// Package rostercsv reads and writes the roster CSV exchange format.
//
// The format is a plain comma join with no quoting or escaping. A name that
// contains a comma does not survive a round trip; this matches the files the
// dashboard has always produced and accepted.
package rostercsv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// Header is the first line of every export.
const Header = "Roll No,Name,Attendance,Study Hours,Past Score,Predicted Score,Risk Level"

// Filename is the suggested download name.
const Filename = "students_data.csv"

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

// Export writes the header and one line per record, in the given order.
// Lines are separated by "\n" with no trailing newline.
func Export(w io.Writer, records []student.Record) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(Header); err != nil {
		return err
	}
	for i := range records {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if _, err := bw.WriteString(Line(&records[i])); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Line renders one record without a line terminator.
func Line(r *student.Record) string {
	return strings.Join([]string{
		r.RollNo,
		r.Name,
		num(r.Attendance),
		num(r.StudyHours),
		num(r.PastScore),
		num(r.PredictedScore),
		string(r.RiskLevel),
	}, ",")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT
// ══════════════════════════════════════════════════════════════════════════════

// Row is one parsed import line. Only the first five columns are read;
// predicted score and risk level are always recomputed.
type Row struct {
	Line       int
	RollNo     string
	Name       string
	Attendance float64
	StudyHours float64
	PastScore  float64
}

// Inputs returns the scoring inputs for the row with default optional values.
func (r Row) Inputs() student.Inputs {
	return student.NewInputs(r.Attendance, r.StudyHours, r.PastScore)
}

// LineError reports a rejected line.
type LineError struct {
	Line int    `json:"line"`
	Text string `json:"text"`
	Err  error  `json:"-"`
}

// Error implements error.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// MarshalJSON adds the error text as "reason".
func (e *LineError) MarshalJSON() ([]byte, error) {
	reason := ""
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return json.Marshal(struct {
		Line   int    `json:"line"`
		Text   string `json:"text"`
		Reason string `json:"reason"`
	}{e.Line, e.Text, reason})
}

// Result is the outcome of parsing an import file.
type Result struct {
	Rows   []Row
	Errors []*LineError
	// Skipped counts lines dropped for a missing name or attendance.
	Skipped int
}

// maxLineBytes bounds one CSV line.
const maxLineBytes = 64 << 10

// Parse reads an import file. The first line is always treated as the header
// and skipped; blank lines are ignored. Lines without a name or attendance are
// skipped silently. Unparseable numbers are reported per line and do not stop
// the import.
func Parse(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	res := &Result{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}

		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		row, ok, err := parseLine(lineNo, text)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, &LineError{Line: lineNo, Text: text, Err: err})
		case !ok:
			res.Skipped++
		default:
			res.Rows = append(res.Rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if lineNo == 0 {
		return nil, shared.ErrEmptyImport
	}
	return res, nil
}

func parseLine(lineNo int, text string) (Row, bool, error) {
	fields := strings.Split(text, ",")
	col := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	row := Row{Line: lineNo, RollNo: col(0), Name: col(1)}
	if row.Name == "" || col(2) == "" {
		return Row{}, false, nil
	}

	var err error
	if row.Attendance, err = parseNumber("attendance", col(2)); err != nil {
		return Row{}, false, err
	}
	if row.StudyHours, err = parseNumber("study hours", col(3)); err != nil {
		return Row{}, false, err
	}
	if row.PastScore, err = parseNumber("past score", col(4)); err != nil {
		return Row{}, false, err
	}
	return row, true, nil
}

func parseNumber(field, s string) (float64, error) {
	if s == "" {
		return 0, shared.NewDomainError("rostercsv", "Parse", shared.ErrEmptyValue, field+" is missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, shared.NewDomainError("rostercsv", "Parse", shared.ErrInvalidFormat, fmt.Sprintf("%s %q is not a number", field, s))
	}
	return v, nil
}
