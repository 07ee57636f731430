package stats

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"schoolhub-server-go/models"
)

// SessionColumn heads one column of the grade book
type SessionColumn struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Topic string `json:"topic,omitempty"`
}

// Cell is one student's entry for one session. Recorded is false when the
// student has no record in that session.
type Cell struct {
	Recorded bool                    `json:"recorded"`
	Status   models.AttendanceStatus `json:"status,omitempty"`
	Score    *float64                `json:"score,omitempty"`
	Homework *bool                   `json:"homework,omitempty"`
	Comment  string                  `json:"comment,omitempty"`
}

// GradeRow is one student's line in the grade book
type GradeRow struct {
	StudentID   string  `json:"studentId"`
	StudentName string  `json:"studentName"`
	Cells       []Cell  `json:"cells"`
	Summary     Summary `json:"summary"`
}

// GradeBook is the class-by-session matrix with per-student and class-wide figures
type GradeBook struct {
	ClassID   string          `json:"classId"`
	ClassName string          `json:"className"`
	Month     string          `json:"month,omitempty"`
	Sessions  []SessionColumn `json:"sessions"`
	Rows      []GradeRow      `json:"rows"`
	Class     Summary         `json:"class"` // all records of enrolled students
}

// BuildGradeBook lays out the given sessions (sorted by date) against the
// students (sorted by name). Records of students not in the list are ignored.
func BuildGradeBook(class models.Clazz, students []models.Student, sessions []models.AttendanceSession) GradeBook {
	ordered := append([]models.AttendanceSession(nil), sessions...)
	SortSessions(ordered)

	roster := append([]models.Student(nil), students...)
	sort.SliceStable(roster, func(i, j int) bool {
		return strings.ToLower(roster[i].Name) < strings.ToLower(roster[j].Name)
	})

	book := GradeBook{
		ClassID:   class.ID,
		ClassName: class.Name,
		Sessions: lo.Map(ordered, func(s models.AttendanceSession, _ int) SessionColumn {
			return SessionColumn{ID: s.ID, Date: s.Date, Topic: s.Topic}
		}),
		Rows: make([]GradeRow, 0, len(roster)),
	}

	var all []models.AttendanceRecord
	for _, st := range roster {
		row := GradeRow{StudentID: st.ID, StudentName: st.Name, Cells: make([]Cell, len(ordered))}
		var records []models.AttendanceRecord
		for i, sess := range ordered {
			r, ok := sess.Records[st.ID]
			if !ok {
				continue
			}
			row.Cells[i] = Cell{Recorded: true, Status: r.Status, Score: r.Score, Homework: r.Homework, Comment: r.Comment}
			records = append(records, r)
		}
		row.Summary = SummarizeRecords(records)
		all = append(all, records...)
		book.Rows = append(book.Rows, row)
	}
	book.Class = SummarizeRecords(all)
	return book
}
