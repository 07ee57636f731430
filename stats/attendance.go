// Package stats folds attendance sessions into per-student and per-class figures:
// attendance rate, average score and homework completion.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"schoolhub-server-go/models"
)

// Summary aggregates the records of one student (or a whole class).
// Rates are fractions in [0, 1]; a nil rate or average means there was nothing to measure.
type Summary struct {
	Sessions        int      `json:"sessions"` // sessions with a record
	Present         int      `json:"present"`
	Late            int      `json:"late"`
	Absent          int      `json:"absent"`
	Excused         int      `json:"excused"`
	Attended        int      `json:"attended"` // present + late
	AttendanceRate  *float64 `json:"attendanceRate"`
	ScoredSessions  int      `json:"scoredSessions"`
	AverageScore    *float64 `json:"averageScore"`
	HomeworkChecked int      `json:"homeworkChecked"`
	HomeworkDone    int      `json:"homeworkDone"`
	HomeworkRate    *float64 `json:"homeworkRate"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	r := round(float64(num)/float64(den), 4)
	return &r
}

// SummarizeRecords folds a list of records. Excused absences do not count
// against the attendance rate.
func SummarizeRecords(records []models.AttendanceRecord) Summary {
	var s Summary
	var scoreTotal float64
	for _, r := range records {
		s.Sessions++
		switch r.Status {
		case models.StatusPresent:
			s.Present++
		case models.StatusLate:
			s.Late++
		case models.StatusAbsent:
			s.Absent++
		case models.StatusExcused:
			s.Excused++
		}
		if r.Score != nil {
			s.ScoredSessions++
			scoreTotal += *r.Score
		}
		if r.Homework != nil {
			s.HomeworkChecked++
			if *r.Homework {
				s.HomeworkDone++
			}
		}
	}
	s.Attended = s.Present + s.Late
	s.AttendanceRate = ratio(s.Attended, s.Sessions-s.Excused)
	s.HomeworkRate = ratio(s.HomeworkDone, s.HomeworkChecked)
	if s.ScoredSessions > 0 {
		avg := round(scoreTotal/float64(s.ScoredSessions), 2)
		s.AverageScore = &avg
	}
	return s
}

// StudentRecords collects the student's records across sessions
func StudentRecords(studentID string, sessions []models.AttendanceSession) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(sessions))
	for _, sess := range sessions {
		if r, ok := sess.Records[studentID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// StudentSummary summarizes one student's records across the given sessions
func StudentSummary(studentID string, sessions []models.AttendanceSession) Summary {
	return SummarizeRecords(StudentRecords(studentID, sessions))
}

// SessionSummary summarizes every record in one session
func SessionSummary(session models.AttendanceSession) Summary {
	return SummarizeRecords(lo.Values(session.Records))
}

// InMonth reports whether a "YYYY-MM-DD" date lies in a "YYYY-MM" month
func InMonth(date, month string) bool {
	return month != "" && strings.HasPrefix(date, month+"-")
}

// FilterMonth keeps the sessions held in month; an empty month keeps everything
func FilterMonth(sessions []models.AttendanceSession, month string) []models.AttendanceSession {
	if month == "" {
		return sessions
	}
	return lo.Filter(sessions, func(s models.AttendanceSession, _ int) bool {
		return InMonth(s.Date, month)
	})
}

// SortSessions orders sessions by date, then creation time
func SortSessions(sessions []models.AttendanceSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
