package stats

import (
	"sort"

	"schoolhub-server-go/models"
)

// RecentLimit caps the number of recent entries in a parent report
const RecentLimit = 10

// ClassReport is a student's standing in one class
type ClassReport struct {
	ClassID   string  `json:"classId"`
	ClassName string  `json:"className"`
	Subject   string  `json:"subject,omitempty"`
	Summary   Summary `json:"summary"`
}

// RecentEntry is one past session as seen by a parent
type RecentEntry struct {
	ClassID   string                  `json:"classId"`
	ClassName string                  `json:"className"`
	SessionID string                  `json:"sessionId"`
	Date      string                  `json:"date"`
	Topic     string                  `json:"topic,omitempty"`
	Record    models.AttendanceRecord `json:"record"`
}

// ParentReport is what the parent portal shows for a child
type ParentReport struct {
	StudentID   string        `json:"studentId"`
	StudentName string        `json:"studentName"`
	Month       string        `json:"month,omitempty"`
	Classes     []ClassReport `json:"classes"`
	Overall     Summary       `json:"overall"`
	Recent      []RecentEntry `json:"recent"`
}

// BuildParentReport summarizes a student's records per class and overall.
// sessionsByClass maps class ID to that class's sessions.
func BuildParentReport(student models.Student, classes []models.Clazz, sessionsByClass map[string][]models.AttendanceSession) ParentReport {
	report := ParentReport{
		StudentID:   student.ID,
		StudentName: student.Name,
		Classes:     make([]ClassReport, 0, len(classes)),
		Recent:      []RecentEntry{},
	}

	var all []models.AttendanceRecord
	for _, class := range classes {
		records := StudentRecords(student.ID, sessionsByClass[class.ID])
		all = append(all, records...)
		report.Classes = append(report.Classes, ClassReport{
			ClassID:   class.ID,
			ClassName: class.Name,
			Subject:   class.Subject,
			Summary:   SummarizeRecords(records),
		})
		for _, sess := range sessionsByClass[class.ID] {
			if r, ok := sess.Records[student.ID]; ok {
				report.Recent = append(report.Recent, RecentEntry{
					ClassID: class.ID, ClassName: class.Name,
					SessionID: sess.ID, Date: sess.Date, Topic: sess.Topic, Record: r,
				})
			}
		}
	}
	report.Overall = SummarizeRecords(all)

	sort.SliceStable(report.Recent, func(i, j int) bool {
		if report.Recent[i].Date != report.Recent[j].Date {
			return report.Recent[i].Date > report.Recent[j].Date
		}
		return report.Recent[i].ClassName < report.Recent[j].ClassName
	})
	if len(report.Recent) > RecentLimit {
		report.Recent = report.Recent[:RecentLimit]
	}
	return report
}
