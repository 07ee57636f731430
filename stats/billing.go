package stats

import (
	"math"

	"github.com/samber/lo"

	"schoolhub-server-go/models"
)

// BillableSessions counts the sessions in which the student attended (present or late)
func BillableSessions(studentID string, sessions []models.AttendanceSession) int {
	return lo.CountBy(sessions, func(s models.AttendanceSession) bool {
		r, ok := s.Records[studentID]
		return ok && r.Status.Attended()
	})
}

// SessionTeacher is the teacher credited for a session: the substitute
// recorded on the session, or the class teacher.
func SessionTeacher(class models.Clazz, session models.AttendanceSession) string {
	if session.TeacherID != "" {
		return session.TeacherID
	}
	return class.TeacherID
}

// TaughtSessions counts the class sessions credited to teacherID
func TaughtSessions(teacherID string, class models.Clazz, sessions []models.AttendanceSession) int {
	return lo.CountBy(sessions, func(s models.AttendanceSession) bool {
		return teacherID != "" && SessionTeacher(class, s) == teacherID
	})
}

func money(v float64) float64 {
	return math.Max(0, round(v, 2))
}

// TuitionAmount is sessions x unit price minus discount, never negative
func TuitionAmount(sessions int, unitPrice, discount float64) float64 {
	return money(float64(sessions)*unitPrice - discount)
}

// SalaryAmount is sessions x rate plus bonus minus deduction, never negative
func SalaryAmount(sessions int, rate, bonus, deduction float64) float64 {
	return money(float64(sessions)*rate + bonus - deduction)
}

// Dashboard holds the headline figures of the admin overview
type Dashboard struct {
	Month              string  `json:"month"`
	Classes            int     `json:"classes"`
	Students           int     `json:"students"`
	Teachers           int     `json:"teachers"`
	SessionsThisMonth  int     `json:"sessionsThisMonth"`
	UnpaidTuitionCount int     `json:"unpaidTuitionCount"`
	UnpaidTuitionTotal float64 `json:"unpaidTuitionTotal"`
	CollectedThisMonth float64 `json:"collectedThisMonth"` // paid tuition billed for this month
	UnpaidSalaryTotal  float64 `json:"unpaidSalaryTotal"`
}

// BuildDashboard assembles the overview for month ("YYYY-MM")
func BuildDashboard(month string, classes, students, teachers int, sessions []models.AttendanceSession,
	tuition []models.TuitionReceipt, salary []models.SalaryReceipt) Dashboard {
	unpaid := lo.Filter(tuition, func(r models.TuitionReceipt, _ int) bool { return !r.Paid })
	collected := lo.Filter(tuition, func(r models.TuitionReceipt, _ int) bool { return r.Paid && r.Month == month })
	unpaidSalary := lo.Filter(salary, func(r models.SalaryReceipt, _ int) bool { return !r.Paid })

	return Dashboard{
		Month:              month,
		Classes:            classes,
		Students:           students,
		Teachers:           teachers,
		SessionsThisMonth:  len(FilterMonth(sessions, month)),
		UnpaidTuitionCount: len(unpaid),
		UnpaidTuitionTotal: round(lo.SumBy(unpaid, func(r models.TuitionReceipt) float64 { return r.Amount }), 2),
		CollectedThisMonth: round(lo.SumBy(collected, func(r models.TuitionReceipt) float64 { return r.Amount }), 2),
		UnpaidSalaryTotal:  round(lo.SumBy(unpaidSalary, func(r models.SalaryReceipt) float64 { return r.Amount }), 2),
	}
}
