package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

var summaryHeader = []interface{}{"Attended", "Late", "Absent", "Excused", "Attendance", "Avg score", "Homework"}

func summaryCells(s stats.Summary) []interface{} {
	return []interface{}{s.Attended, s.Late, s.Absent, s.Excused, percent(s.AttendanceRate), number(s.AverageScore), percent(s.HomeworkRate)}
}

// CellText is the short grade book notation of a cell, e.g. "present 8.5 HW"
func CellText(c stats.Cell) string {
	if !c.Recorded {
		return ""
	}
	parts := []string{string(c.Status)}
	if c.Score != nil {
		parts = append(parts, fmt.Sprintf("%g", *c.Score))
	}
	if c.Homework != nil {
		if *c.Homework {
			parts = append(parts, "HW")
		} else {
			parts = append(parts, "no HW")
		}
	}
	return strings.Join(parts, " ")
}

// GradeBook writes one row per student with a column per session followed by
// the student's summary, and a final class row.
func GradeBook(w io.Writer, book stats.GradeBook) error {
	s := &sheet{name: "Grade Book", widths: map[string]float64{"A": 24}}
	s.header = []interface{}{"Student"}
	for _, col := range book.Sessions {
		head := col.Date
		if col.Topic != "" {
			head += " " + col.Topic
		}
		s.header = append(s.header, head)
	}
	s.header = append(s.header, summaryHeader...)

	for _, row := range book.Rows {
		line := []interface{}{row.StudentName}
		for _, c := range row.Cells {
			line = append(line, CellText(c))
		}
		s.add(append(line, summaryCells(row.Summary)...)...)
	}
	classLine := []interface{}{"Class"}
	for range book.Sessions {
		classLine = append(classLine, "")
	}
	s.add(append(classLine, summaryCells(book.Class)...)...)

	info := &sheet{name: "Info", header: []interface{}{"Field", "Value"}}
	info.add("Class", book.ClassName)
	info.add("Class ID", book.ClassID)
	month := book.Month
	if month == "" {
		month = "all"
	}
	info.add("Month", month)
	info.add("Sessions", len(book.Sessions))
	info.add("Students", len(book.Rows))
	return writeWorkbook(w, s, info)
}

// Session writes the attendance sheet of one session. Students are listed
// by name; recorded students who are no longer listed follow by ID.
func Session(w io.Writer, class models.Clazz, session models.AttendanceSession, students []models.Student) error {
	s := &sheet{
		name:   "Attendance",
		header: []interface{}{"Student ID", "Student", "Status", "Score", "Homework", "Comment"},
		widths: map[string]float64{"B": 24, "F": 40},
	}
	seen := map[string]bool{}
	addRow := func(id, name string) {
		seen[id] = true
		r, ok := session.Records[id]
		if !ok {
			s.add(id, name, "", "", "", "")
			return
		}
		hw := ""
		if r.Homework != nil {
			hw = yesNo(*r.Homework)
		}
		s.add(id, name, string(r.Status), number(r.Score), hw, r.Comment)
	}
	for _, st := range students {
		addRow(st.ID, st.Name)
	}
	var rest []string
	for id := range session.Records {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		addRow(id, "")
	}

	sum := stats.SessionSummary(session)
	info := &sheet{name: "Info", header: []interface{}{"Field", "Value"}}
	info.add("Class", class.Name)
	info.add("Date", session.Date)
	info.add("Topic", session.Topic)
	info.add("Teacher ID", session.TeacherID)
	info.add("Attendance", percent(sum.AttendanceRate))
	info.add("Avg score", number(sum.AverageScore))
	return writeWorkbook(w, s, info)
}

// Names resolves IDs to display names; unknown IDs are shown as-is
type Names struct {
	Students map[string]string
	Classes  map[string]string
	Teachers map[string]string
}

func lookup(m map[string]string, id string) string {
	if name, ok := m[id]; ok && name != "" {
		return name
	}
	return id
}

func formatPaidAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// Receipts writes a tuition sheet and a salary sheet, each closed by a totals row
func Receipts(w io.Writer, month string, tuition []models.TuitionReceipt, salary []models.SalaryReceipt, names Names) error {
	ts := &sheet{
		name:   "Tuition " + month,
		header: []interface{}{"Number", "Student", "Class", "Month", "Sessions", "Unit price", "Discount", "Amount", "Paid", "Paid at"},
		widths: map[string]float64{"A": 16, "B": 24, "C": 20},
	}
	var billed, collected float64
	for _, r := range tuition {
		ts.add(r.Number, lookup(names.Students, r.StudentID), lookup(names.Classes, r.ClassID), r.Month,
			r.Sessions, r.UnitPrice, r.Discount, r.Amount, yesNo(r.Paid), formatPaidAt(r.PaidAt))
		billed += r.Amount
		if r.Paid {
			collected += r.Amount
		}
	}
	ts.add("Total", "", "", "", "", "", "", billed, fmt.Sprintf("collected %.2f", collected), "")

	ss := &sheet{
		name:   "Salary " + month,
		header: []interface{}{"Number", "Teacher", "Month", "Sessions", "Rate", "Bonus", "Deduction", "Amount", "Paid", "Paid at"},
		widths: map[string]float64{"A": 16, "B": 24},
	}
	var payroll float64
	for _, r := range salary {
		ss.add(r.Number, lookup(names.Teachers, r.TeacherID), r.Month, r.Sessions, r.Rate, r.Bonus, r.Deduction,
			r.Amount, yesNo(r.Paid), formatPaidAt(r.PaidAt))
		payroll += r.Amount
	}
	ss.add("Total", "", "", "", "", "", "", payroll, "", "")

	if month == "" {
		ts.name, ss.name = "Tuition", "Salary"
	}
	return writeWorkbook(w, ts, ss)
}

// Roster writes every student with contact details and class names
func Roster(w io.Writer, students []models.Student, classNames map[string]string) error {
	s := &sheet{
		name:   "Students",
		header: []interface{}{"ID", "Name", "Birth date", "Phone", "Parent name", "Parent phone", "Classes", "Note"},
		widths: map[string]float64{"A": 38, "B": 24, "G": 32},
	}
	for _, st := range students {
		classes := make([]string, 0, len(st.ClassIDs))
		for _, id := range st.ClassIDs {
			classes = append(classes, lookup(classNames, id))
		}
		s.add(st.ID, st.Name, st.BirthDate, st.Phone, st.ParentName, st.ParentPhone, strings.Join(classes, ", "), st.Note)
	}
	return writeWorkbook(w, s)
}
