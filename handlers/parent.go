package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/db"
)

// --- Parent Portal ---

// childFor checks the :studentId path parameter is linked to the parent
func childFor(c *gin.Context) (string, bool) {
	studentID := c.Param("studentId")
	if !currentUser(c).HasStudent(studentID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This student is not linked to your account"})
		return "", false
	}
	return studentID, true
}

// GetChildren handles GET /api/parent/children
func (h *APIHandler) GetChildren(c *gin.Context) {
	children, err := h.RedisService.GetStudentsByIDs(c.Request.Context(), currentUser(c).StudentIDs)
	if err != nil {
		respondError(c, err, "retrieve children")
		return
	}
	c.JSON(http.StatusOK, children)
}

// GetChildReport handles GET /api/parent/children/:studentId/report (?month=)
func (h *APIHandler) GetChildReport(c *gin.Context) {
	studentID, ok := childFor(c)
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}
	report, err := h.studentReport(c.Request.Context(), studentID, month)
	if err != nil {
		respondError(c, err, "build report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetChildReceipts handles GET /api/parent/children/:studentId/receipts
func (h *APIHandler) GetChildReceipts(c *gin.Context) {
	studentID, ok := childFor(c)
	if !ok {
		return
	}
	receipts, err := h.RedisService.ListTuitionReceipts(c.Request.Context(), db.ReceiptFilter{StudentID: studentID})
	if err != nil {
		respondError(c, err, "retrieve receipts")
		return
	}
	c.JSON(http.StatusOK, receipts)
}
