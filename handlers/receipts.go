package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/db"
	"schoolhub-server-go/export"
	"schoolhub-server-go/models"
	"schoolhub-server-go/receipt"
)

type paidRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

// receiptFilter reads ?month=, ?studentId=, ?classId=, ?teacherId= and ?paid=
func receiptFilter(c *gin.Context) (db.ReceiptFilter, bool) {
	month, ok := monthParam(c)
	if !ok {
		return db.ReceiptFilter{}, false
	}
	f := db.ReceiptFilter{
		Month:     month,
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		TeacherID: c.Query("teacherId"),
	}
	if raw := c.Query("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paid must be true or false"})
			return db.ReceiptFilter{}, false
		}
		f.Paid = &paid
	}
	return f, true
}

// --- Tuition Receipts ---

// CreateTuitionReceipt handles POST /api/receipts/tuition
func (h *APIHandler) CreateTuitionReceipt(c *gin.Context) {
	var req db.TuitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.RedisService.CreateTuitionReceipt(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "create tuition receipt")
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListTuitionReceipts handles GET /api/receipts/tuition
func (h *APIHandler) ListTuitionReceipts(c *gin.Context) {
	f, ok := receiptFilter(c)
	if !ok {
		return
	}
	receipts, err := h.RedisService.ListTuitionReceipts(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "retrieve tuition receipts")
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func (h *APIHandler) loadTuition(c *gin.Context) (*models.TuitionReceipt, bool) {
	r, err := h.RedisService.GetTuitionReceipt(c.Request.Context(), c.Param("receiptId"))
	if err != nil {
		respondError(c, err, "retrieve tuition receipt")
		return nil, false
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return nil, false
	}
	return r, true
}

// GetTuitionReceipt handles GET /api/receipts/tuition/:receiptId
func (h *APIHandler) GetTuitionReceipt(c *gin.Context) {
	if r, ok := h.loadTuition(c); ok {
		c.JSON(http.StatusOK, r)
	}
}

// SetTuitionPaid handles PATCH /api/receipts/tuition/:receiptId/paid
func (h *APIHandler) SetTuitionPaid(c *gin.Context) {
	var req paidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.RedisService.SetTuitionPaid(c.Request.Context(), c.Param("receiptId"), *req.Paid)
	if err != nil {
		respondError(c, err, "update tuition receipt")
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteTuitionReceipt handles DELETE /api/receipts/tuition/:receiptId
func (h *APIHandler) DeleteTuitionReceipt(c *gin.Context) {
	if err := h.RedisService.DeleteTuitionReceipt(c.Request.Context(), c.Param("receiptId")); err != nil {
		respondError(c, err, "delete tuition receipt")
		return
	}
	c.Status(http.StatusNoContent)
}

// TuitionPDF handles GET /api/receipts/tuition/:receiptId/pdf
func (h *APIHandler) TuitionPDF(c *gin.Context) {
	r, ok := h.loadTuition(c)
	if !ok {
		return
	}
	h.sendTuitionPDF(c, r)
}

// ChildReceiptPDF handles GET /api/parent/children/:studentId/receipts/:receiptId/pdf
func (h *APIHandler) ChildReceiptPDF(c *gin.Context) {
	studentID, ok := childFor(c)
	if !ok {
		return
	}
	r, ok := h.loadTuition(c)
	if !ok {
		return
	}
	if r.StudentID != studentID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return
	}
	h.sendTuitionPDF(c, r)
}

func (h *APIHandler) sendTuitionPDF(c *gin.Context, r *models.TuitionReceipt) {
	ctx := c.Request.Context()
	studentName, className := r.StudentID, r.ClassID
	if student, err := h.RedisService.GetStudentByID(ctx, r.StudentID); err == nil && student != nil {
		studentName = student.Name
	}
	if clazz, err := h.RedisService.GetClassByID(ctx, r.ClassID); err == nil && clazz != nil {
		className = clazz.Name
	}
	sendFile(c, receipt.ContentType, r.Number+".pdf", func(w io.Writer) error {
		return receipt.Tuition(w, h.Config.SchoolName, *r, studentName, className)
	})
}

// --- Salary Receipts ---

// CreateSalaryReceipt handles POST /api/receipts/salary
func (h *APIHandler) CreateSalaryReceipt(c *gin.Context) {
	var req db.SalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.RedisService.CreateSalaryReceipt(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "create salary receipt")
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListSalaryReceipts handles GET /api/receipts/salary
func (h *APIHandler) ListSalaryReceipts(c *gin.Context) {
	f, ok := receiptFilter(c)
	if !ok {
		return
	}
	receipts, err := h.RedisService.ListSalaryReceipts(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "retrieve salary receipts")
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func (h *APIHandler) loadSalary(c *gin.Context) (*models.SalaryReceipt, bool) {
	r, err := h.RedisService.GetSalaryReceipt(c.Request.Context(), c.Param("receiptId"))
	if err != nil {
		respondError(c, err, "retrieve salary receipt")
		return nil, false
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return nil, false
	}
	return r, true
}

// GetSalaryReceipt handles GET /api/receipts/salary/:receiptId
func (h *APIHandler) GetSalaryReceipt(c *gin.Context) {
	if r, ok := h.loadSalary(c); ok {
		c.JSON(http.StatusOK, r)
	}
}

// SetSalaryPaid handles PATCH /api/receipts/salary/:receiptId/paid
func (h *APIHandler) SetSalaryPaid(c *gin.Context) {
	var req paidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.RedisService.SetSalaryPaid(c.Request.Context(), c.Param("receiptId"), *req.Paid)
	if err != nil {
		respondError(c, err, "update salary receipt")
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteSalaryReceipt handles DELETE /api/receipts/salary/:receiptId
func (h *APIHandler) DeleteSalaryReceipt(c *gin.Context) {
	if err := h.RedisService.DeleteSalaryReceipt(c.Request.Context(), c.Param("receiptId")); err != nil {
		respondError(c, err, "delete salary receipt")
		return
	}
	c.Status(http.StatusNoContent)
}

// SalaryPDF handles GET /api/receipts/salary/:receiptId/pdf
func (h *APIHandler) SalaryPDF(c *gin.Context) {
	r, ok := h.loadSalary(c)
	if !ok {
		return
	}
	teacherName := r.TeacherID
	if teacher, err := h.RedisService.GetTeacherByID(c.Request.Context(), r.TeacherID); err == nil && teacher != nil {
		teacherName = teacher.Name
	}
	sendFile(c, receipt.ContentType, r.Number+".pdf", func(w io.Writer) error {
		return receipt.Salary(w, h.Config.SchoolName, *r, teacherName)
	})
}

// --- Export ---

// receiptNames maps the IDs referenced by receipts to display names
func (h *APIHandler) receiptNames(ctx context.Context) (export.Names, error) {
	names := export.Names{Students: map[string]string{}, Classes: map[string]string{}, Teachers: map[string]string{}}
	students, err := h.RedisService.GetAllStudents(ctx)
	if err != nil {
		return names, err
	}
	for _, s := range students {
		names.Students[s.ID] = s.Name
	}
	classes, err := h.RedisService.GetAllClasses(ctx)
	if err != nil {
		return names, err
	}
	for _, cl := range classes {
		names.Classes[cl.ID] = cl.Name
	}
	teachers, err := h.RedisService.GetAllTeachers(ctx)
	if err != nil {
		return names, err
	}
	for _, t := range teachers {
		names.Teachers[t.ID] = t.Name
	}
	return names, nil
}

// ExportReceipts handles GET /api/receipts/export?month=YYYY-MM
func (h *APIHandler) ExportReceipts(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	f := db.ReceiptFilter{Month: month}
	tuition, err := h.RedisService.ListTuitionReceipts(ctx, f)
	if err != nil {
		respondError(c, err, "export receipts")
		return
	}
	salary, err := h.RedisService.ListSalaryReceipts(ctx, f)
	if err != nil {
		respondError(c, err, "export receipts")
		return
	}
	names, err := h.receiptNames(ctx)
	if err != nil {
		respondError(c, err, "export receipts")
		return
	}
	name := "receipts.xlsx"
	if month != "" {
		name = "receipts-" + month + ".xlsx"
	}
	sendFile(c, export.ContentType, name, func(w io.Writer) error {
		return export.Receipts(w, month, tuition, salary, names)
	})
}
