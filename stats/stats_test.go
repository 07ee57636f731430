package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub-server-go/models"
)

func score(v float64) *float64 { return &v }
func hw(v bool) *bool          { return &v }

func rec(status models.AttendanceStatus, s *float64, h *bool) models.AttendanceRecord {
	return models.AttendanceRecord{Status: status, Score: s, Homework: h}
}

func sampleSessions() []models.AttendanceSession {
	return []models.AttendanceSession{
		{ID: "s2", ClassID: "c1", Date: "2026-09-09", Topic: "Fractions", Records: map[string]models.AttendanceRecord{
			"alice": rec(models.StatusLate, score(7), hw(false)),
			"bob":   rec(models.StatusAbsent, nil, nil),
		}},
		{ID: "s1", ClassID: "c1", Date: "2026-09-02", Topic: "Decimals", Records: map[string]models.AttendanceRecord{
			"alice": rec(models.StatusPresent, score(9), hw(true)),
			"bob":   rec(models.StatusPresent, score(6), hw(true)),
		}},
		{ID: "s3", ClassID: "c1", Date: "2026-10-01", TeacherID: "t-sub", Records: map[string]models.AttendanceRecord{
			"alice": rec(models.StatusExcused, nil, nil),
			"bob":   rec(models.StatusPresent, score(8), hw(false)),
		}},
	}
}

func TestSummarizeRecords(t *testing.T) {
	s := StudentSummary("alice", sampleSessions())
	assert.Equal(t, 3, s.Sessions)
	assert.Equal(t, 1, s.Present)
	assert.Equal(t, 1, s.Late)
	assert.Equal(t, 1, s.Excused)
	assert.Equal(t, 2, s.Attended)
	require.NotNil(t, s.AttendanceRate)
	assert.Equal(t, 1.0, *s.AttendanceRate) // excused is not held against the student
	require.NotNil(t, s.AverageScore)
	assert.Equal(t, 8.0, *s.AverageScore)
	require.NotNil(t, s.HomeworkRate)
	assert.Equal(t, 0.5, *s.HomeworkRate)

	b := StudentSummary("bob", sampleSessions())
	require.NotNil(t, b.AttendanceRate)
	assert.Equal(t, 0.6667, *b.AttendanceRate)
	assert.Equal(t, 7.0, *b.AverageScore)

	empty := StudentSummary("nobody", sampleSessions())
	assert.Zero(t, empty.Sessions)
	assert.Nil(t, empty.AttendanceRate)
	assert.Nil(t, empty.AverageScore)
	assert.Nil(t, empty.HomeworkRate)
}

func TestOnlyExcusedHasNoRate(t *testing.T) {
	s := SummarizeRecords([]models.AttendanceRecord{rec(models.StatusExcused, nil, nil)})
	assert.Equal(t, 1, s.Sessions)
	assert.Nil(t, s.AttendanceRate)
}

func TestBuildGradeBook(t *testing.T) {
	class := models.Clazz{ID: "c1", Name: "Math 6A"}
	students := []models.Student{{ID: "bob", Name: "Bob"}, {ID: "alice", Name: "alice"}}

	book := BuildGradeBook(class, students, sampleSessions())
	require.Len(t, book.Sessions, 3)
	assert.Equal(t, []string{"2026-09-02", "2026-09-09", "2026-10-01"},
		[]string{book.Sessions[0].Date, book.Sessions[1].Date, book.Sessions[2].Date})

	require.Len(t, book.Rows, 2)
	assert.Equal(t, "alice", book.Rows[0].StudentID) // case-insensitive name order
	assert.Equal(t, 9.0, *book.Rows[0].Cells[0].Score)
	assert.Equal(t, models.StatusLate, book.Rows[0].Cells[1].Status)
	assert.True(t, book.Rows[1].Cells[2].Recorded)

	assert.Equal(t, 6, book.Class.Sessions)
	require.NotNil(t, book.Class.AverageScore)
	assert.Equal(t, 7.5, *book.Class.AverageScore)
}

func TestGradeBookUnrecordedCell(t *testing.T) {
	sessions := []models.AttendanceSession{{ID: "s1", Date: "2026-09-01", Records: map[string]models.AttendanceRecord{}}}
	book := BuildGradeBook(models.Clazz{ID: "c"}, []models.Student{{ID: "x", Name: "X"}}, sessions)
	require.Len(t, book.Rows, 1)
	assert.False(t, book.Rows[0].Cells[0].Recorded)
	assert.Zero(t, book.Rows[0].Summary.Sessions)
}

func TestBuildParentReport(t *testing.T) {
	student := models.Student{ID: "alice", Name: "Alice"}
	classes := []models.Clazz{{ID: "c1", Name: "Math"}, {ID: "c2", Name: "Art"}}
	byClass := map[string][]models.AttendanceSession{
		"c1": sampleSessions(),
		"c2": {{ID: "a1", Date: "2026-09-09", Records: map[string]models.AttendanceRecord{
			"alice": rec(models.StatusAbsent, nil, nil),
		}}},
	}

	report := BuildParentReport(student, classes, byClass)
	require.Len(t, report.Classes, 2)
	assert.Equal(t, 3, report.Classes[0].Summary.Sessions)
	assert.Equal(t, 1, report.Classes[1].Summary.Absent)
	assert.Equal(t, 4, report.Overall.Sessions)
	assert.Equal(t, 0.6667, *report.Overall.AttendanceRate)

	require.Len(t, report.Recent, 4)
	assert.Equal(t, "2026-10-01", report.Recent[0].Date)
	// same date: ordered by class name
	assert.Equal(t, "Art", report.Recent[1].ClassName)
	assert.Equal(t, "Math", report.Recent[2].ClassName)
}

func TestBilling(t *testing.T) {
	sessions := sampleSessions()
	class := models.Clazz{ID: "c1", TeacherID: "t-1"}

	assert.Equal(t, 2, BillableSessions("alice", sessions))
	assert.Equal(t, 1, BillableSessions("bob", FilterMonth(sessions, "2026-09")))
	assert.Equal(t, 2, TaughtSessions("t-1", class, sessions))
	assert.Equal(t, 1, TaughtSessions("t-sub", class, sessions))
	assert.Equal(t, 0, TaughtSessions("", class, sessions))

	assert.Equal(t, 250.0, TuitionAmount(3, 100, 50))
	assert.Equal(t, 0.0, TuitionAmount(1, 100, 150))
	assert.Equal(t, 330.5, SalaryAmount(2, 150.25, 50, 20))
}

func TestFilterMonth(t *testing.T) {
	assert.Len(t, FilterMonth(sampleSessions(), "2026-09"), 2)
	assert.Len(t, FilterMonth(sampleSessions(), "2026-10"), 1)
	assert.Len(t, FilterMonth(sampleSessions(), ""), 3)
	assert.False(t, InMonth("2026-091-01", "2026-09"))
}

func TestBuildDashboard(t *testing.T) {
	paidAt := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	tuition := []models.TuitionReceipt{
		{Month: "2026-09", Amount: 300, Paid: true, PaidAt: &paidAt},
		{Month: "2026-09", Amount: 120.5},
		{Month: "2026-08", Amount: 80},
	}
	salary := []models.SalaryReceipt{{Amount: 1000}, {Amount: 500, Paid: true}}

	d := BuildDashboard("2026-09", 2, 10, 3, sampleSessions(), tuition, salary)
	assert.Equal(t, 2, d.SessionsThisMonth)
	assert.Equal(t, 2, d.UnpaidTuitionCount)
	assert.Equal(t, 200.5, d.UnpaidTuitionTotal)
	assert.Equal(t, 300.0, d.CollectedThisMonth)
	assert.Equal(t, 1000.0, d.UnpaidSalaryTotal)
}
