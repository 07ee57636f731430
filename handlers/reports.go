package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/db"
	"schoolhub-server-go/export"
	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

// monthParam reads ?month=YYYY-MM. An empty month means all time.
func monthParam(c *gin.Context) (string, bool) {
	month := c.Query("month")
	if month == "" {
		return "", true
	}
	if _, err := time.Parse(db.MonthLayout, month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
		return "", false
	}
	return month, true
}

// GetGradeBook handles GET /api/classes/:classId/gradebook (?month=, ?format=xlsx)
func (h *APIHandler) GetGradeBook(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	students, err := h.RedisService.GetStudentsByClassID(ctx, clazz.ID)
	if err != nil {
		respondError(c, err, "build grade book")
		return
	}
	sessions, err := h.RedisService.ListSessionsByClass(ctx, clazz.ID)
	if err != nil {
		respondError(c, err, "build grade book")
		return
	}
	book := stats.BuildGradeBook(*clazz, students, stats.FilterMonth(sessions, month))
	book.Month = month

	if c.Query("format") == "xlsx" {
		name := fmt.Sprintf("gradebook-%s.xlsx", clazz.ID)
		if month != "" {
			name = fmt.Sprintf("gradebook-%s-%s.xlsx", clazz.ID, month)
		}
		sendFile(c, export.ContentType, name, func(w io.Writer) error {
			return export.GradeBook(w, book)
		})
		return
	}
	c.JSON(http.StatusOK, book)
}

// studentReport builds the per-class and overall report of a student
func (h *APIHandler) studentReport(ctx context.Context, studentID, month string) (*stats.ParentReport, error) {
	student, err := h.RedisService.GetStudentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: student %s", db.ErrNotFound, studentID)
	}
	classes := make([]models.Clazz, 0, len(student.ClassIDs))
	for _, id := range student.ClassIDs {
		clazz, err := h.RedisService.GetClassByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if clazz != nil {
			classes = append(classes, *clazz)
		}
	}
	byClass, err := h.RedisService.SessionsByClass(ctx, student.ClassIDs)
	if err != nil {
		return nil, err
	}
	for id, sessions := range byClass {
		byClass[id] = stats.FilterMonth(sessions, month)
	}
	report := stats.BuildParentReport(*student, classes, byClass)
	report.Month = month
	return &report, nil
}

// GetStudentReport handles GET /api/students/:studentId/report (?month=)
func (h *APIHandler) GetStudentReport(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	report, err := h.studentReport(c.Request.Context(), c.Param("studentId"), month)
	if err != nil {
		respondError(c, err, "build student report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetDashboard handles GET /api/dashboard (?month=, default the current month)
func (h *APIHandler) GetDashboard(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	if month == "" {
		month = time.Now().Format(db.MonthLayout)
	}
	ctx := c.Request.Context()
	classes, err := h.RedisService.GetAllClasses(ctx)
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	students, err := h.RedisService.GetAllStudents(ctx)
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	teachers, err := h.RedisService.GetAllTeachers(ctx)
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	sessions, err := h.RedisService.ListAllSessions(ctx)
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	tuition, err := h.RedisService.ListTuitionReceipts(ctx, db.ReceiptFilter{})
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	salary, err := h.RedisService.ListSalaryReceipts(ctx, db.ReceiptFilter{})
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}
	conflicts, err := h.RedisService.AllConflicts(ctx)
	if err != nil {
		respondError(c, err, "build dashboard")
		return
	}

	dashboard := stats.BuildDashboard(month, len(classes), len(students), len(teachers), sessions, tuition, salary)
	c.JSON(http.StatusOK, gin.H{"dashboard": dashboard, "conflicts": len(conflicts)})
}

// ExportStudents handles GET /api/students/export
func (h *APIHandler) ExportStudents(c *gin.Context) {
	ctx := c.Request.Context()
	students, err := h.RedisService.GetAllStudents(ctx)
	if err != nil {
		respondError(c, err, "export students")
		return
	}
	classes, err := h.RedisService.GetAllClasses(ctx)
	if err != nil {
		respondError(c, err, "export students")
		return
	}
	names := make(map[string]string, len(classes))
	for _, cl := range classes {
		names[cl.ID] = cl.Name
	}
	sendFile(c, export.ContentType, "students.xlsx", func(w io.Writer) error {
		return export.Roster(w, students, names)
	})
}
